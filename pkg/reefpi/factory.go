// Package reefpi exposes the BL602 sampler as a reef-pi analog input driver.
package reefpi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	reefhal "github.com/reef-pi/hal"

	"github.com/itohio/bladc/pkg/adc"
	"github.com/itohio/bladc/pkg/hal"
)

const driverName = "BL602 ADC"

// Parameter names (UI + config)
const (
	pinParam       = "Pin"
	frequencyParam = "Frequency"
	samplesParam   = "Samples"
)

type factory struct {
	meta       reefhal.Metadata
	parameters []reefhal.ConfigParameter
}

var f *factory
var once sync.Once

// Factory returns the driver factory. The hardware resource passed to
// NewDriver must be a hal.HAL.
func Factory() reefhal.DriverFactory {
	once.Do(func() {
		f = &factory{
			meta: reefhal.Metadata{
				Name:         driverName,
				Description:  "BL602 GPADC channel sampled by DMA, reported as the scaled ring average (0..3199).",
				Capabilities: []reefhal.Capability{reefhal.AnalogInput},
			},
			parameters: []reefhal.ConfigParameter{
				{Name: pinParam, Type: reefhal.Integer, Order: 0, Default: adc.DefaultPin},
				{Name: frequencyParam, Type: reefhal.Integer, Order: 1, Default: adc.DefaultFrequency},
				{Name: samplesParam, Type: reefhal.Integer, Order: 2, Default: adc.DefaultSamples},
			},
		}
	})
	return f
}

func (f *factory) Metadata() reefhal.Metadata              { return f.meta }
func (f *factory) GetParameters() []reefhal.ConfigParameter { return f.parameters }

func (f *factory) ValidateParameters(parameters map[string]interface{}) (bool, map[string][]string) {
	failures := make(map[string][]string)

	if v, ok := parameters[pinParam]; ok {
		pin, ok := toInt(v)
		switch {
		case !ok:
			failures[pinParam] = append(failures[pinParam], "Pin must be an integer GPIO number")
		case !adc.ValidPin(hal.Pin(pin)):
			failures[pinParam] = append(failures[pinParam], fmt.Sprintf("GPIO %d has no ADC channel. Valid: %v", pin, adc.Pins()))
		}
	}

	if v, ok := parameters[frequencyParam]; ok {
		hz, ok := toInt(v)
		if !ok || hz < 0 || !adc.ValidFrequency(uint32(hz)) {
			failures[frequencyParam] = append(failures[frequencyParam],
				fmt.Sprintf("Frequency must be %d..%d Hz", adc.MinFrequency, adc.MaxFrequency))
		}
	}

	if v, ok := parameters[samplesParam]; ok {
		n, ok := toInt(v)
		if !ok || n <= 0 || n > adc.MaxSamples {
			failures[samplesParam] = append(failures[samplesParam],
				fmt.Sprintf("Samples must be 1..%d", adc.MaxSamples))
		}
	}

	return len(failures) == 0, failures
}

// NewDriver initializes the sampler. Unlike the shell, configuration
// failures are returned: reef-pi owns the process.
func (f *factory) NewDriver(parameters map[string]interface{}, hardwareResources interface{}) (reefhal.Driver, error) {
	if valid, failures := f.ValidateParameters(parameters); !valid {
		return nil, errors.New(reefhal.ToErrorString(failures))
	}

	h, ok := hardwareResources.(hal.HAL)
	if !ok || h == nil {
		return nil, fmt.Errorf("%s: hardware resource %T is not a hal.HAL", driverName, hardwareResources)
	}

	pin := hal.Pin(getInt(parameters, pinParam, adc.DefaultPin))
	hz := uint32(getInt(parameters, frequencyParam, adc.DefaultFrequency))
	samples := getInt(parameters, samplesParam, adc.DefaultSamples)

	s := adc.New(h)
	if err := s.Initialize(pin, hz, samples); err != nil {
		return nil, fmt.Errorf("%s: %w", driverName, err)
	}

	d := &Driver{
		sampler: s,
		meta:    f.meta,
	}
	d.pin = &analogPin{parent: d, gpio: pin, scale: 1}
	return d, nil
}

func getInt(m map[string]interface{}, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	if i, ok := toInt(v); ok {
		return i
	}
	return def
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case uint32:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
