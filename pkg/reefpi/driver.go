package reefpi

import (
	"errors"
	"fmt"
	"math"
	"sync"

	reefhal "github.com/reef-pi/hal"

	"github.com/itohio/bladc/pkg/adc"
	"github.com/itohio/bladc/pkg/fault"
	"github.com/itohio/bladc/pkg/hal"
)

var _ reefhal.AnalogInputDriver = (*Driver)(nil)

// Driver exposes a single AnalogInput pin (0) backed by one sampler.
type Driver struct {
	sampler *adc.Sampler
	meta    reefhal.Metadata
	pin     *analogPin
}

type analogPin struct {
	parent *Driver
	gpio   hal.Pin

	mu     sync.Mutex
	last   uint32
	valid  bool
	scale  float64
	offset float64
}

// read returns the newest ring average, or the last good one while the
// DMA engine is still filling the ring.
func (p *analogPin) read() (v uint32, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*fault.Fault)
			if !ok {
				panic(r)
			}
			err = f
		}
	}()

	avg, err := p.parent.sampler.ReadAverage(p.gpio)
	if errors.Is(err, adc.ErrNotReady) {
		if !p.valid {
			return 0, err
		}
		return p.last, nil
	}
	if err != nil {
		return 0, err
	}
	p.last = avg
	p.valid = true
	return avg, nil
}

func (p *analogPin) Value() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, err := p.read()
	if err != nil {
		return 0, err
	}
	return float64(v)*p.scale + p.offset, nil
}

func (p *analogPin) Measure() (float64, error) { return p.Value() }

// Calibrate fits value = scale*reading + offset. One measurement shifts the
// offset; two or more use the first and last for a two point fit.
func (p *analogPin) Calibrate(ms []reefhal.Measurement) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch len(ms) {
	case 0:
		p.scale, p.offset = 1, 0
		return nil
	case 1:
		p.scale = 1
		p.offset = ms[0].Expected - ms[0].Observed
		return nil
	}

	a, b := ms[0], ms[len(ms)-1]
	if a.Observed == b.Observed {
		return fmt.Errorf("%s: calibration points share observed value %.3f", driverName, a.Observed)
	}
	scale := (b.Expected - a.Expected) / (b.Observed - a.Observed)
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return fmt.Errorf("%s: invalid calibration slope", driverName)
	}
	p.scale = scale
	p.offset = a.Expected - scale*a.Observed
	return nil
}

func (p *analogPin) Name() string { return fmt.Sprintf("%s GPIO%d", driverName, p.gpio) }
func (p *analogPin) Number() int  { return 0 }
func (p *analogPin) Close() error { return nil }

func (p *analogPin) Metadata() reefhal.Metadata { return p.parent.meta }

// ---- reefhal.Driver ----

func (d *Driver) Name() string               { return driverName }
func (d *Driver) Close() error               { return nil }
func (d *Driver) Metadata() reefhal.Metadata { return d.meta }

func (d *Driver) AnalogInputPin(n int) (reefhal.AnalogInputPin, error) {
	if n != 0 {
		return nil, fmt.Errorf("%s supports only channel 0", driverName)
	}
	return d.pin, nil
}

func (d *Driver) AnalogInputPins() []reefhal.AnalogInputPin {
	return []reefhal.AnalogInputPin{d.pin}
}

func (d *Driver) Pins(cap reefhal.Capability) ([]reefhal.Pin, error) {
	if cap != reefhal.AnalogInput {
		return nil, fmt.Errorf("unsupported capability: %s", cap.String())
	}
	return []reefhal.Pin{d.pin}, nil
}
