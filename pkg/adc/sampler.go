// Package adc configures one ADC input for DMA driven continuous conversion
// and reduces each completed sample ring to a single scaled mean.
package adc

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/itohio/bladc/pkg/fault"
	"github.com/itohio/bladc/pkg/hal"
)

const (
	// ScaleMax is the exclusive upper bound of a scaled sample.
	ScaleMax = 3200
	// SampleMask selects the conversion result bits of a DMA word.
	SampleMask = 0xFFFF

	MinFrequency = 500   // Hz, single-channel mode
	MaxFrequency = 16000 // Hz, single-channel mode

	DefaultPin       = 11
	DefaultFrequency = 10000
	DefaultSamples   = 1000
	MaxSamples       = 65536

	// Both PGA stages run at 1x.
	PGA1Gain = hal.Gain1
	PGA2Gain = hal.Gain1
)

// Step names reported in faults.
const (
	StepValidate = "validate"
	StepFreqInit = "adc_freq_init"
	StepInit     = "adc_init"
	StepGain     = "adc_set_gain"
	StepDMAInit  = "adc_dma_init"
	StepGPIOInit = "adc_gpio_init"
	StepChannel  = "adc_get_channel"
	StepContext  = "dma_find_ctx"
	StepStart    = "adc_start"
	StepRead     = "adc_read"
	StepSnapshot = "adc_snapshot"
)

// ErrNotReady is returned while the DMA engine is still filling the ring.
var ErrNotReady = hal.ErrNotReady

// adcPins are the GPIOs with ADC muxing.
var adcPins = [...]hal.Pin{4, 5, 6, 9, 10, 11, 12, 13, 14, 15}

// ValidPin reports whether pin can be routed to the ADC.
func ValidPin(pin hal.Pin) bool {
	for _, p := range adcPins {
		if p == pin {
			return true
		}
	}
	return false
}

// Pins returns the ADC capable GPIOs.
func Pins() []hal.Pin {
	out := make([]hal.Pin, len(adcPins))
	copy(out, adcPins[:])
	return out
}

// ValidFrequency reports whether hz is usable in single-channel mode.
func ValidFrequency(hz uint32) bool {
	return hz >= MinFrequency && hz <= MaxFrequency
}

// State is the sampler life cycle position.
type State int

const (
	Uninitialized State = iota
	Configured
	SamplingInProgress
	SampleReady
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case SamplingInProgress:
		return "sampling"
	case SampleReady:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Sampler drives one ADC input.
type Sampler struct {
	hal hal.HAL

	mu         sync.Mutex
	configured bool
	pin        hal.Pin
	channel    hal.Channel
	buf        []uint32 // Private copy of the DMA ring
}

// New creates a sampler on top of h.
func New(h hal.HAL) *Sampler {
	return &Sampler{hal: h}
}

// Initialize programs the conversion clock, binds pin to the ADC, applies
// the fixed gain, arms a DMA ring of samples entries and starts conversion.
// Arguments are validated before any HAL call. Every failure is a *fault.Fault
// naming the failed step. Calling it again reprograms the same state.
func (s *Sampler) Initialize(pin hal.Pin, hz uint32, samples int) error {
	switch {
	case !ValidPin(pin):
		return fault.Config(StepValidate, fmt.Errorf("gpio %d has no adc mux", pin))
	case !ValidFrequency(hz):
		return fault.Config(StepValidate, fmt.Errorf("frequency %d Hz outside [%d, %d]", hz, MinFrequency, MaxFrequency))
	case samples <= 0 || samples > MaxSamples:
		return fault.Config(StepValidate, fmt.Errorf("sample count %d outside [1, %d]", samples, MaxSamples))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.configured = false

	if err := s.hal.FreqInit(hal.ModeSingle, hz); err != nil {
		return fault.HAL(StepFreqInit, err)
	}
	if err := s.hal.Init(hal.ModeSingle, pin); err != nil {
		return fault.HAL(StepInit, err)
	}
	if err := s.hal.SetGain(PGA1Gain, PGA2Gain); err != nil {
		return fault.HAL(StepGain, err)
	}
	if err := s.hal.DMAInit(hal.ModeSingle, uint32(samples)); err != nil {
		return fault.HAL(StepDMAInit, err)
	}
	if err := s.hal.GPIOInit(pin); err != nil {
		return fault.HAL(StepGPIOInit, err)
	}
	ch, err := s.hal.ChannelByGPIO(pin)
	if err != nil {
		return fault.HAL(StepChannel, err)
	}
	ctx, err := s.hal.FindContext(hal.DMAChannel)
	if err != nil {
		return fault.HAL(StepContext, err)
	}
	if ctx == nil {
		return fault.HAL(StepContext, hal.ErrNoContext)
	}
	ctx.MarkChannel(ch)
	if err := s.hal.Start(); err != nil {
		return fault.HAL(StepStart, err)
	}

	if len(s.buf) != samples {
		s.buf = make([]uint32, samples)
	}
	s.pin = pin
	s.channel = ch
	s.configured = true

	log.Printf("ADC gpio %d (channel %d) at %d Hz, %d samples", pin, ch, hz, samples)

	return nil
}

// State reports where the sampler is in its life cycle.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.configured {
		return Uninitialized
	}
	ctx, err := s.hal.FindContext(hal.DMAChannel)
	if err != nil || ctx == nil {
		return Configured
	}
	if ctx.Ready() {
		return SampleReady
	}
	return SamplingInProgress
}

// Samples returns the configured ring size, 0 before Initialize.
func (s *Sampler) Samples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured {
		return 0
	}
	return len(s.buf)
}

// ReadAverage returns the scaled mean of the last completed ring for pin.
// Reading a pin that was never initialized panics with a precondition
// fault. ErrNotReady is returned while the ring is still being filled.
func (s *Sampler) ReadAverage(pin hal.Pin) (uint32, error) {
	return s.read(pin, Average)
}

// ReadRaw is ReadAverage without scaling: the mean of the masked 16-bit
// conversion results.
func (s *Sampler) ReadRaw(pin hal.Pin) (uint32, error) {
	return s.read(pin, RawAverage)
}

// read copies the completed ring into the private buffer and reduces it.
func (s *Sampler) read(pin hal.Pin, reduce func([]uint32) uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fault.Assert(s.configured && s.pin == pin, StepRead, fmt.Sprintf("gpio %d not initialized for adc", pin))

	ctx, err := s.hal.FindContext(hal.DMAChannel)
	if err != nil {
		panic(fault.HAL(StepContext, err))
	}
	fault.Assert(ctx != nil, StepContext, "dma context is nil")
	fault.Assert(ctx.ChannelConfigured(s.channel), StepRead, fmt.Sprintf("channel %d not marked in dma context", s.channel))

	if !ctx.Ready() {
		return 0, ErrNotReady
	}

	if err := ctx.Snapshot(s.buf); err != nil {
		if errors.Is(err, hal.ErrNotReady) {
			return 0, ErrNotReady
		}
		panic(fault.HAL(StepSnapshot, err))
	}
	return reduce(s.buf), nil
}

// Average returns the truncated mean of samples after rescaling the low 16
// bits of each into [0, ScaleMax). Arithmetic is uint32 and wraps.
func Average(samples []uint32) uint32 {
	if len(samples) == 0 {
		return 0
	}
	var sum uint32
	for _, v := range samples {
		sum += ((v & SampleMask) * ScaleMax) >> 16
	}
	return sum / uint32(len(samples))
}

// RawAverage returns the truncated mean of the low 16 bits of samples.
func RawAverage(samples []uint32) uint32 {
	if len(samples) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range samples {
		sum += uint64(v & SampleMask)
	}
	return uint32(sum / uint64(len(samples)))
}
