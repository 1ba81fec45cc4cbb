package shell

import (
	"errors"
	"strings"
	"testing"

	"github.com/itohio/bladc/pkg/adc"
	"github.com/itohio/bladc/pkg/config"
	"github.com/itohio/bladc/pkg/console"
	"github.com/itohio/bladc/pkg/fault"
	"github.com/itohio/bladc/pkg/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureFaults replaces the exit handler for the duration of the test.
func captureFaults(t *testing.T) *[]*fault.Fault {
	t.Helper()
	var got []*fault.Fault
	fault.SetHandler(func(f *fault.Fault) { got = append(got, f) })
	t.Cleanup(func() { fault.SetHandler(nil) })
	return &got
}

func newADCShell(t *testing.T, cfg config.ADCConfig) (*Registry, *hal.Sim) {
	t.Helper()
	sim := hal.NewManualSim()
	r := NewRegistry(0)
	RegisterADC(r, adc.New(sim), cfg)
	return r, sim
}

func TestRegistry_Names(t *testing.T) {
	r, _ := newADCShell(t, config.Default().ADC)
	assert.Equal(t, []string{"help", "init_adc", "read_adc", "read_adc_raw"}, r.Names())

	cmd, ok := r.Lookup("init_adc")
	require.True(t, ok)
	assert.Equal(t, "Init ADC Channel", cmd.Help)
}

func TestRegistry_Help(t *testing.T) {
	r, _ := newADCShell(t, config.Default().ADC)
	out, err := r.Exec("help")
	require.NoError(t, err)
	assert.Equal(t, "help\r\ninit_adc\r\nread_adc\r\nread_adc_raw\r\n", out)
}

func TestRegistry_EmptyLine(t *testing.T) {
	r := NewRegistry(0)
	out, err := r.Exec("   ")
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestRegistry_NotFound(t *testing.T) {
	faults := captureFaults(t)
	r := NewRegistry(0)

	_, err := r.Exec("blink 11")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "blink")
	assert.Empty(t, *faults, "unknown commands are not fatal")
}

func TestRegistry_BadQuoting(t *testing.T) {
	r := NewRegistry(0)
	_, err := r.Exec(`read_adc "unterminated`)
	assert.Error(t, err)
}

func TestRegistry_PassesArguments(t *testing.T) {
	r := NewRegistry(0)
	var got []string
	r.Register("echo", "", func(out *console.Buffer, argv []string) error {
		got = argv
		return out.Println(strings.Join(argv[1:], " "))
	})

	out, err := r.Exec(`echo a "b c"  d`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "a", "b c", "d"}, got)
	assert.Equal(t, "a b c d\r\n", out)
}

func TestRegistry_PlainErrorIsNotFatal(t *testing.T) {
	faults := captureFaults(t)
	r := NewRegistry(0)
	oops := errors.New("oops")
	r.Register("fail", "", func(*console.Buffer, []string) error { return oops })

	_, err := r.Exec("fail")
	assert.ErrorIs(t, err, oops)
	assert.Empty(t, *faults)
}

func TestRegistry_OverflowIsFatal(t *testing.T) {
	faults := captureFaults(t)
	r := NewRegistry(8)
	r.Register("long", "", func(out *console.Buffer, _ []string) error {
		return out.Println("this does not fit")
	})

	_, err := r.Exec("long")
	assert.ErrorIs(t, err, fault.ErrOverflow)
	require.Len(t, *faults, 1)
	assert.ErrorIs(t, (*faults)[0], fault.ErrOverflow)
}

func TestInitADC(t *testing.T) {
	faults := captureFaults(t)
	r, sim := newADCShell(t, config.Default().ADC)

	out, err := r.Exec("init_adc")
	require.NoError(t, err)
	assert.Empty(t, out, "init_adc prints nothing on success")
	assert.Empty(t, *faults)
	assert.Equal(t, uint32(10000), sim.Frequency())
}

func TestInitADC_InvalidPinHalts(t *testing.T) {
	faults := captureFaults(t)
	cfg := config.Default().ADC
	cfg.Pin = 7
	r, sim := newADCShell(t, cfg)

	_, err := r.Exec("init_adc")
	assert.ErrorIs(t, err, fault.ErrConfig)
	require.Len(t, *faults, 1)
	assert.Equal(t, adc.StepValidate, (*faults)[0].Step)
	assert.Empty(t, sim.Calls())
}

func TestInitADC_HALFailureHalts(t *testing.T) {
	faults := captureFaults(t)
	r, sim := newADCShell(t, config.Default().ADC)
	sim.Fail("DMAInit", errors.New("out of memory"))

	_, err := r.Exec("init_adc")
	assert.ErrorIs(t, err, fault.ErrHAL)
	require.Len(t, *faults, 1)
	assert.Equal(t, adc.StepDMAInit, (*faults)[0].Step)
}

func TestReadADC_BeforeInitHalts(t *testing.T) {
	faults := captureFaults(t)
	r, _ := newADCShell(t, config.Default().ADC)

	out, err := r.Exec("read_adc")
	assert.ErrorIs(t, err, fault.ErrPrecondition)
	assert.Empty(t, out)
	require.Len(t, *faults, 1)
	assert.ErrorIs(t, (*faults)[0], fault.ErrPrecondition)
}

func TestReadADC_NotFinished(t *testing.T) {
	captureFaults(t)
	r, _ := newADCShell(t, config.Default().ADC)
	_, err := r.Exec("init_adc")
	require.NoError(t, err)

	out, err := r.Exec("read_adc")
	require.NoError(t, err)
	assert.Equal(t, "ADC Sampling not finished\r\n", out)
}

func TestReadADC_Average(t *testing.T) {
	captureFaults(t)
	cfg := config.Default().ADC
	r, sim := newADCShell(t, cfg)
	_, err := r.Exec("init_adc")
	require.NoError(t, err)

	ring := make([]uint32, cfg.Samples)
	for i := range ring {
		if i%2 == 1 {
			ring[i] = 0xFFFF
		}
	}
	require.NoError(t, sim.Load(ring))

	out, err := r.Exec("read_adc")
	require.NoError(t, err)
	assert.Equal(t, "[Rust] Average: 1599\r\n", out)

	out, err = r.Exec("read_adc_raw")
	require.NoError(t, err)
	assert.Equal(t, "Raw Average: 32767\r\n", out)
}
