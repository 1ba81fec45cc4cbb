package device

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/itohio/bladc/pkg/adc"
	"github.com/itohio/bladc/pkg/config"
	"github.com/itohio/bladc/pkg/console"
	"github.com/itohio/bladc/pkg/hal"
	"github.com/itohio/bladc/pkg/shell"
)

// Local runs the sampler shell in process on a simulated peripheral.
type Local struct {
	sim   *hal.Sim
	shell *shell.Registry

	mu        sync.RWMutex
	connected bool
}

// NewLocal creates a local device for cfg. A nil sim creates one from cfg.Sim.
func NewLocal(cfg *config.Config, sim *hal.Sim) *Local {
	if cfg == nil {
		cfg = config.Default()
	}
	if sim == nil {
		sim = hal.NewSim(&cfg.Sim)
	}

	r := shell.NewRegistry(console.DefaultCapacity)
	shell.RegisterADC(r, adc.New(sim), cfg.ADC)

	return &Local{sim: sim, shell: r}
}

// Connect marks the device connected.
func (l *Local) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connected {
		return fmt.Errorf("already connected")
	}
	l.connected = true
	return nil
}

// Close stops the simulated DMA engine.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		return nil
	}
	l.connected = false
	return l.sim.Close()
}

// IsConnected returns whether the device is currently connected.
func (l *Local) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected
}

// Exec runs line in the local shell.
func (l *Local) Exec(ctx context.Context, line string) ([]string, error) {
	if !l.IsConnected() {
		return nil, fmt.Errorf("not connected")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := l.shell.Exec(line)
	text := strings.TrimSuffix(out, console.LineEnd)
	if text == "" {
		return nil, err
	}
	return strings.Split(text, console.LineEnd), err
}
