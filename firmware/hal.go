//go:build tinygo

package main

import (
	"errors"
	"fmt"
	"machine"
	"time"

	"github.com/itohio/bladc/pkg/hal"
)

var _ hal.HAL = (*boardADC)(nil)

// boardADC emulates the BL602 GPADC DMA ring on top of machine.ADC. The
// main loop calls sample, which plays the part of the DMA engine.
type boardADC struct {
	adc     machine.ADC
	pin     hal.Pin
	period  time.Duration
	running bool

	ring     []uint32 // Being filled
	pos      int
	data     []uint32 // Last completed ring, nil until the first one
	chanInit uint32
	armed    bool

	lastSample time.Time
}

func (b *boardADC) FreqInit(mode hal.Mode, hz uint32) error {
	if mode != hal.ModeSingle || hz == 0 {
		return fmt.Errorf("unsupported mode %d at %d Hz", mode, hz)
	}
	b.period = time.Second / time.Duration(hz)
	return nil
}

func (b *boardADC) Init(mode hal.Mode, pin hal.Pin) error {
	p, ok := adcPins[pin]
	if !ok {
		return fmt.Errorf("gpio %d: %w", pin, hal.ErrPin)
	}
	b.running = false
	b.pin = pin
	b.adc = machine.ADC{Pin: p}
	return nil
}

// SetGain accepts only the unity gain pair: the board has no PGA.
func (b *boardADC) SetGain(gain1, gain2 hal.Gain) error {
	if gain1 > hal.Gain1 || gain2 > hal.Gain1 {
		return fmt.Errorf("gain %v/%v not available", gain1, gain2)
	}
	return nil
}

func (b *boardADC) DMAInit(mode hal.Mode, samples uint32) error {
	if samples == 0 {
		return errors.New("dma ring of zero samples")
	}
	if cap(b.ring) < int(samples) {
		b.ring = make([]uint32, samples)
	}
	b.ring = b.ring[:samples]
	b.pos = 0
	b.data = nil
	b.armed = true
	return nil
}

func (b *boardADC) GPIOInit(pin hal.Pin) error {
	p, ok := adcPins[pin]
	if !ok {
		return fmt.Errorf("gpio %d: %w", pin, hal.ErrPin)
	}
	p.Configure(machine.PinConfig{Mode: machine.PinInput})
	b.adc.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})
	return nil
}

func (b *boardADC) ChannelByGPIO(pin hal.Pin) (hal.Channel, error) {
	ch, ok := adcChannels[pin]
	if !ok {
		return 0, fmt.Errorf("gpio %d: %w", pin, hal.ErrPin)
	}
	return ch, nil
}

func (b *boardADC) FindContext(dma int) (hal.DMAContext, error) {
	if dma != hal.DMAChannel || !b.armed {
		return nil, fmt.Errorf("dma channel %d: %w", dma, hal.ErrNoContext)
	}
	return b, nil
}

func (b *boardADC) Start() error {
	if !b.armed || b.period == 0 {
		return errors.New("adc not configured")
	}
	b.running = true
	b.lastSample = time.Now()
	return nil
}

// sample takes at most one conversion per period and publishes the ring
// once it is full.
func (b *boardADC) sample(now time.Time) {
	if !b.running || now.Sub(b.lastSample) < b.period {
		return
	}
	b.lastSample = now

	b.ring[b.pos] = uint32(adcChannels[b.pin])<<21 | uint32(b.adc.Get())
	b.pos++
	if b.pos < len(b.ring) {
		return
	}
	b.pos = 0
	if b.data == nil {
		b.data = make([]uint32, len(b.ring))
	}
	copy(b.data, b.ring)
}

func (b *boardADC) MarkChannel(ch hal.Channel) {
	b.chanInit |= 1 << uint(ch)
}

func (b *boardADC) ChannelConfigured(ch hal.Channel) bool {
	return b.chanInit&(1<<uint(ch)) != 0
}

func (b *boardADC) Ready() bool {
	return b.data != nil
}

func (b *boardADC) Snapshot(dst []uint32) error {
	if b.data == nil {
		return hal.ErrNotReady
	}
	if len(dst) != len(b.data) {
		return fmt.Errorf("snapshot %d samples from ring of %d: %w", len(dst), len(b.data), hal.ErrLength)
	}
	copy(dst, b.data)
	return nil
}
