package reefpi

import (
	"errors"
	"testing"

	reefhal "github.com/reef-pi/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/bladc/pkg/adc"
	"github.com/itohio/bladc/pkg/fault"
	"github.com/itohio/bladc/pkg/hal"
)

func ring(n int, v uint32) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newDriver(t *testing.T, params map[string]interface{}) (*Driver, *hal.Sim) {
	t.Helper()
	sim := hal.NewManualSim()
	d, err := Factory().NewDriver(params, sim)
	require.NoError(t, err)
	return d.(*Driver), sim
}

func TestFactory_Metadata(t *testing.T) {
	f := Factory()
	assert.Same(t, f, Factory())
	assert.Equal(t, driverName, f.Metadata().Name)
	assert.Equal(t, []reefhal.Capability{reefhal.AnalogInput}, f.Metadata().Capabilities)
	assert.Len(t, f.GetParameters(), 3)
}

func TestFactory_ValidateParameters(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]interface{}
		fields []string
	}{
		{"defaults", map[string]interface{}{}, nil},
		{"valid", map[string]interface{}{pinParam: 4, frequencyParam: 500, samplesParam: 100}, nil},
		{"string values", map[string]interface{}{pinParam: "15", frequencyParam: "16000"}, nil},
		{"float values", map[string]interface{}{pinParam: 12.0, samplesParam: 1000.0}, nil},
		{"pin without adc", map[string]interface{}{pinParam: 7}, []string{pinParam}},
		{"pin not a number", map[string]interface{}{pinParam: "led"}, []string{pinParam}},
		{"frequency too low", map[string]interface{}{frequencyParam: 499}, []string{frequencyParam}},
		{"frequency negative", map[string]interface{}{frequencyParam: -1}, []string{frequencyParam}},
		{"zero samples", map[string]interface{}{samplesParam: 0}, []string{samplesParam}},
		{"everything wrong", map[string]interface{}{pinParam: 3, frequencyParam: 20000, samplesParam: -5},
			[]string{pinParam, frequencyParam, samplesParam}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, failures := Factory().ValidateParameters(tt.params)
			assert.Equal(t, len(tt.fields) == 0, ok)
			assert.Len(t, failures, len(tt.fields))
			for _, field := range tt.fields {
				assert.Contains(t, failures, field)
			}
		})
	}
}

func TestFactory_NewDriver_InvalidParameters(t *testing.T) {
	sim := hal.NewManualSim()
	_, err := Factory().NewDriver(map[string]interface{}{pinParam: 8}, sim)
	assert.Error(t, err)
	assert.Empty(t, sim.Calls())
}

func TestFactory_NewDriver_WrongResource(t *testing.T) {
	_, err := Factory().NewDriver(map[string]interface{}{}, "not a hal")
	assert.Error(t, err)
}

func TestFactory_NewDriver_HALFailure(t *testing.T) {
	sim := hal.NewManualSim()
	sim.Fail("DMAInit", errors.New("out of memory"))

	_, err := Factory().NewDriver(map[string]interface{}{}, sim)
	assert.ErrorIs(t, err, fault.ErrHAL)
}

func TestDriver_Pins(t *testing.T) {
	d, _ := newDriver(t, map[string]interface{}{pinParam: 5})

	assert.Len(t, d.AnalogInputPins(), 1)
	pin, err := d.AnalogInputPin(0)
	require.NoError(t, err)
	assert.Equal(t, 0, pin.Number())
	assert.Equal(t, "BL602 ADC GPIO5", pin.Name())

	_, err = d.AnalogInputPin(1)
	assert.Error(t, err)

	pins, err := d.Pins(reefhal.AnalogInput)
	require.NoError(t, err)
	assert.Len(t, pins, 1)

	_, err = d.Pins(reefhal.DigitalOutput)
	assert.Error(t, err)

	assert.NoError(t, d.Close())
}

func TestDriver_Value(t *testing.T) {
	d, sim := newDriver(t, map[string]interface{}{samplesParam: 10})
	pin, err := d.AnalogInputPin(0)
	require.NoError(t, err)

	_, err = pin.Value()
	assert.ErrorIs(t, err, adc.ErrNotReady, "no reading yet")

	require.NoError(t, sim.Load(ring(10, 0xFFFF)))
	v, err := pin.Value()
	require.NoError(t, err)
	assert.Equal(t, 3199.0, v)

	// A new cycle is in progress; the last good reading is kept.
	sim.Reset()
	v, err = pin.Measure()
	require.NoError(t, err)
	assert.Equal(t, 3199.0, v)

	require.NoError(t, sim.Load(ring(10, 0)))
	v, err = pin.Value()
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestDriver_LostContextIsAnError(t *testing.T) {
	d, sim := newDriver(t, map[string]interface{}{samplesParam: 10})
	pin, err := d.AnalogInputPin(0)
	require.NoError(t, err)

	// DMA re-armed behind the sampler's back with a different ring size.
	require.NoError(t, sim.DMAInit(hal.ModeSingle, 20))
	require.NoError(t, sim.Load(ring(20, 0)))

	_, err = pin.Value()
	assert.ErrorIs(t, err, fault.ErrHAL)
	assert.ErrorIs(t, err, hal.ErrLength)
}

func TestDriver_Calibrate(t *testing.T) {
	d, sim := newDriver(t, map[string]interface{}{samplesParam: 10})
	pin, err := d.AnalogInputPin(0)
	require.NoError(t, err)
	require.NoError(t, sim.Load(ring(10, 0x8000))) // 1600

	require.NoError(t, pin.Calibrate([]reefhal.Measurement{{Expected: 1650, Observed: 1600}}))
	v, err := pin.Value()
	require.NoError(t, err)
	assert.Equal(t, 1650.0, v)

	// 0 -> 0 mV, 3200 -> 3300 mV
	require.NoError(t, pin.Calibrate([]reefhal.Measurement{
		{Expected: 0, Observed: 0},
		{Expected: 3300, Observed: 3200},
	}))
	v, err = pin.Value()
	require.NoError(t, err)
	assert.InDelta(t, 1650.0, v, 1e-9)

	assert.Error(t, pin.Calibrate([]reefhal.Measurement{
		{Expected: 0, Observed: 100},
		{Expected: 10, Observed: 100},
	}))

	require.NoError(t, pin.Calibrate(nil))
	v, err = pin.Value()
	require.NoError(t, err)
	assert.Equal(t, 1600.0, v)
}
