package shell

import (
	"errors"
	"log"

	"github.com/itohio/bladc/pkg/adc"
	"github.com/itohio/bladc/pkg/config"
	"github.com/itohio/bladc/pkg/console"
	"github.com/itohio/bladc/pkg/hal"
)

// Output of the ADC commands.
const (
	NotFinished   = "ADC Sampling not finished"
	AverageFormat = "[Rust] Average: %d"
	RawFormat     = "Raw Average: %d"
)

// RegisterADC adds init_adc, read_adc and read_adc_raw for the channel
// described by cfg.
func RegisterADC(r *Registry, s *adc.Sampler, cfg config.ADCConfig) {
	pin := hal.Pin(cfg.Pin)

	r.Register("init_adc", "Init ADC Channel", func(out *console.Buffer, _ []string) error {
		log.Printf("Init ADC")
		return s.Initialize(pin, cfg.Frequency, cfg.Samples)
	})

	r.Register("read_adc", "Read ADC Channel", func(out *console.Buffer, _ []string) error {
		return report(out, AverageFormat, func() (uint32, error) { return s.ReadAverage(pin) })
	})

	r.Register("read_adc_raw", "Read ADC Channel unscaled", func(out *console.Buffer, _ []string) error {
		return report(out, RawFormat, func() (uint32, error) { return s.ReadRaw(pin) })
	})
}

func report(out *console.Buffer, format string, read func() (uint32, error)) error {
	v, err := read()
	if errors.Is(err, adc.ErrNotReady) {
		return out.Println(NotFinished)
	}
	if err != nil {
		return err
	}
	if err := out.Printf(format, v); err != nil {
		return err
	}
	return out.Printf(console.LineEnd)
}
