package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/itohio/bladc/pkg/config"
	"github.com/itohio/bladc/pkg/device"
	"github.com/itohio/bladc/pkg/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T, cfg *config.Config) (*device.Local, *hal.Sim) {
	t.Helper()
	sim := hal.NewManualSim()
	l := device.NewLocal(cfg, sim)
	require.NoError(t, l.Connect())
	t.Cleanup(func() { l.Close() })
	return l, sim
}

func TestREPL(t *testing.T) {
	l, _ := newLocal(t, config.Default())

	in := strings.NewReader("help\n\ninit_adc\nread_adc\nblink\nquit\nread_adc\n")
	var out bytes.Buffer

	require.NoError(t, repl(context.Background(), l, in, &out))

	text := out.String()
	assert.Contains(t, text, "init_adc\n")
	assert.Contains(t, text, "ADC Sampling not finished\n")
	assert.Contains(t, text, "error: command not found: blink\n")
	assert.Equal(t, 1, strings.Count(text, "ADC Sampling not finished"), "nothing runs after quit")
}

func TestPollOnce(t *testing.T) {
	cfg := config.Default()
	cfg.ADC.Samples = 4
	cfg.Poll.Interval = time.Millisecond
	l, sim := newLocal(t, cfg)

	go func() {
		for sim.RingSize() == 0 {
			time.Sleep(time.Millisecond)
		}
		_ = sim.Load([]uint32{0xFFFF, 0xFFFF, 0, 0})
	}()

	require.NoError(t, pollOnce(context.Background(), l, cfg))
}

func TestPollOnce_Timeout(t *testing.T) {
	cfg := config.Default()
	cfg.Poll.Interval = time.Millisecond
	cfg.Poll.Timeout = 20 * time.Millisecond
	l, _ := newLocal(t, cfg)

	err := pollOnce(context.Background(), l, cfg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMonitor(t *testing.T) {
	cfg := config.Default()
	cfg.ADC.Samples = 2
	cfg.Poll.Interval = time.Millisecond
	cfg.Poll.Window = 3
	l, sim := newLocal(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for sim.RingSize() == 0 {
			time.Sleep(time.Millisecond)
		}
		_ = sim.Load([]uint32{0x8000, 0x8000})
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	var out bytes.Buffer
	require.NoError(t, monitor(ctx, l, cfg, &out))
	assert.Contains(t, out.String(), "avg=1600 mean=1600.0 min=1600 max=1600")
}
