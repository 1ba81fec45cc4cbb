//go:build tinygo

package main

import (
	"machine"

	"github.com/itohio/bladc/pkg/hal"
)

const (
	// UART configuration. The host side defaults to the same speed.
	UART_BAUD_RATE = 2000000

	// Longest accepted command line; longer lines are discarded.
	LINE_BUFFER_SIZE = 64

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits, scaled to 16 bits by Get
)

// adcPins routes the BL602 GPIO numbers used by the shell to the analog
// inputs of this board.
var adcPins = map[hal.Pin]machine.Pin{
	4:  machine.A0,
	5:  machine.A1,
	6:  machine.A2,
	9:  machine.A3,
	10: machine.A4,
	11: machine.A5,
	12: machine.A6,
	13: machine.A7,
	14: machine.A8,
	15: machine.A9,
}

// adcChannels mirrors the BL602 GPIO to GPADC channel mapping.
var adcChannels = map[hal.Pin]hal.Channel{
	12: 0,
	4:  1,
	14: 2,
	13: 3,
	5:  4,
	6:  5,
	9:  6,
	10: 7,
	11: 10,
	15: 11,
}
