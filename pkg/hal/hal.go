// Package hal describes the BL602 ADC and DMA primitives the sampler drives.
package hal

import (
	"errors"
	"fmt"
)

// Pin is a GPIO number.
type Pin int

// Channel is an ADC input channel number.
type Channel int

// Mode selects the ADC conversion mode.
type Mode int

// ModeSingle is single-channel continuous conversion.
const ModeSingle Mode = 1

// DMAChannel is the DMA channel that serves the ADC.
const DMAChannel = 1

// Gain is a PGA gain register value.
type Gain uint32

// PGA gain encodings.
const (
	GainNone Gain = iota
	Gain1
	Gain2
	Gain4
	Gain8
	Gain16
	Gain32
)

func (g Gain) String() string {
	switch g {
	case GainNone:
		return "none"
	case Gain1:
		return "1x"
	case Gain2:
		return "2x"
	case Gain4:
		return "4x"
	case Gain8:
		return "8x"
	case Gain16:
		return "16x"
	case Gain32:
		return "32x"
	}
	return fmt.Sprintf("gain(%d)", uint32(g))
}

// Valid reports whether g is a known gain encoding.
func (g Gain) Valid() bool {
	return g <= Gain32
}

var (
	// ErrNotReady is returned by Snapshot while the DMA ring has not been filled.
	ErrNotReady = errors.New("sampling not finished")
	// ErrLength is returned by Snapshot when the destination does not match the ring.
	ErrLength = errors.New("snapshot length mismatch")
	// ErrPin is returned for a GPIO without ADC muxing.
	ErrPin = errors.New("gpio has no adc channel")
	// ErrNoContext is returned when no DMA context is bound to a channel.
	ErrNoContext = errors.New("dma context not found")
)

// HAL is the set of ADC and DMA operations the sampler needs. Every call is
// synchronous and either fully succeeds or returns an error.
type HAL interface {
	FreqInit(mode Mode, hz uint32) error
	Init(mode Mode, pin Pin) error
	SetGain(gain1, gain2 Gain) error
	DMAInit(mode Mode, samples uint32) error
	GPIOInit(pin Pin) error
	ChannelByGPIO(pin Pin) (Channel, error)
	FindContext(dma int) (DMAContext, error)
	Start() error
}

// DMAContext is the ADC DMA ring state.
type DMAContext interface {
	// MarkChannel records that ch has been configured.
	MarkChannel(ch Channel)
	// ChannelConfigured reports whether ch has been marked.
	ChannelConfigured(ch Channel) bool
	// Ready reports whether a completed ring is available.
	Ready() bool
	// Snapshot copies the completed ring into dst. len(dst) must equal the
	// ring size. Returns ErrNotReady if no ring is available yet.
	Snapshot(dst []uint32) error
}

// GainRegister is the PGA part of the GPADC configuration word.
type GainRegister struct {
	Gain1    Gain
	Gain2    Gain
	ChopMode uint32
	PGAEn    bool
	VCMIEn   bool
}

// NewGainRegister computes the register fields for a pair of gains. Chop mode
// 2 with the PGA enabled is used whenever either stage amplifies.
func NewGainRegister(gain1, gain2 Gain) GainRegister {
	r := GainRegister{Gain1: gain1, Gain2: gain2, ChopMode: 1}
	if gain1 != GainNone || gain2 != GainNone {
		r.ChopMode = 2
		r.PGAEn = true
	}
	return r
}
