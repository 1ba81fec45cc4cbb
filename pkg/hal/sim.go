package hal

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/bladc/pkg/config"
)

// channelShift is where the DMA word carries the channel id; the conversion
// result lives in the low 16 bits.
const channelShift = 21

// gpioChannels maps ADC capable GPIOs to their input channel.
var gpioChannels = map[Pin]Channel{
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

var _ HAL = (*Sim)(nil)

// Sim simulates the BL602 ADC and its DMA ring.
type Sim struct {
	cfg    *config.SimConfig
	manual bool

	mu      sync.RWMutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	hz       uint32
	pin      Pin
	gain     GainRegister
	ring     int      // Armed ring size, 0 until DMAInit
	data     []uint32 // Completed ring, nil while sampling is in progress
	chanInit uint32
	dmaReady bool

	calls []string
	fail  map[string]error

	startTime time.Time
}

// NewSim creates a simulated peripheral whose DMA engine refills the ring
// once per sampling cycle after Start.
func NewSim(cfg *config.SimConfig) *Sim {
	if cfg == nil {
		cfg = &config.SimConfig{
			Level:        0.5,
			Noise:        0.01,
			RipplePeriod: time.Second,
		}
	}
	return &Sim{
		cfg:  cfg,
		fail: make(map[string]error),
	}
}

// NewManualSim creates a simulated peripheral that never fills the ring on
// its own. Use Load to publish a ring.
func NewManualSim() *Sim {
	s := NewSim(nil)
	s.manual = true
	return s
}

// Fail makes the named HAL method (e.g. "DMAInit") return err. A nil err
// clears the injected failure.
func (s *Sim) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, method)
		return
	}
	s.fail[method] = err
}

// Calls returns the HAL methods invoked so far, in order.
func (s *Sim) Calls() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Gain returns the last programmed gain register.
func (s *Sim) Gain() GainRegister {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gain
}

// Frequency returns the programmed conversion rate.
func (s *Sim) Frequency() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hz
}

// RingSize returns the armed DMA ring size.
func (s *Sim) RingSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring
}

// Running reports whether the DMA engine goroutine is active.
func (s *Sim) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// call records method and returns its injected failure. Caller holds mu.
func (s *Sim) call(method string) error {
	s.calls = append(s.calls, method)
	return s.fail[method]
}

func (s *Sim) FreqInit(mode Mode, hz uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("FreqInit"); err != nil {
		return err
	}
	if mode != ModeSingle {
		return fmt.Errorf("unsupported mode %d", mode)
	}
	s.hz = hz
	return nil
}

func (s *Sim) Init(mode Mode, pin Pin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("Init"); err != nil {
		return err
	}
	if _, ok := gpioChannels[pin]; !ok {
		return fmt.Errorf("gpio %d: %w", pin, ErrPin)
	}
	s.pin = pin
	return nil
}

func (s *Sim) SetGain(gain1, gain2 Gain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("SetGain"); err != nil {
		return err
	}
	if !gain1.Valid() || !gain2.Valid() {
		return fmt.Errorf("invalid gain %v/%v", gain1, gain2)
	}
	s.gain = NewGainRegister(gain1, gain2)
	return nil
}

func (s *Sim) DMAInit(mode Mode, samples uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("DMAInit"); err != nil {
		return err
	}
	if samples == 0 {
		return fmt.Errorf("dma ring of zero samples")
	}
	s.ring = int(samples)
	s.data = nil
	s.dmaReady = true
	return nil
}

func (s *Sim) GPIOInit(pin Pin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("GPIOInit"); err != nil {
		return err
	}
	if _, ok := gpioChannels[pin]; !ok {
		return fmt.Errorf("gpio %d: %w", pin, ErrPin)
	}
	return nil
}

func (s *Sim) ChannelByGPIO(pin Pin) (Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := gpioChannels[pin]
	if !ok {
		return 0, fmt.Errorf("gpio %d: %w", pin, ErrPin)
	}
	return ch, nil
}

func (s *Sim) FindContext(dma int) (DMAContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if dma != DMAChannel || !s.dmaReady {
		return nil, fmt.Errorf("dma channel %d: %w", dma, ErrNoContext)
	}
	return simContext{s: s}, nil
}

// Start begins continuous conversion. Calling it again restarts the DMA
// engine with the current configuration.
func (s *Sim) Start() error {
	s.mu.Lock()
	if err := s.call("Start"); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.ring == 0 || s.hz == 0 {
		s.mu.Unlock()
		return fmt.Errorf("adc not configured")
	}
	s.mu.Unlock()

	s.stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = time.Now()
	if s.manual {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	period := time.Duration(s.ring) * time.Second / time.Duration(s.hz)
	go s.runDMA(ctx, period, s.done)

	return nil
}

// Close stops the DMA engine.
func (s *Sim) Close() error {
	s.stop()
	return nil
}

func (s *Sim) stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Load publishes values as a completed ring.
func (s *Sim) Load(values []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dmaReady {
		return ErrNoContext
	}
	if len(values) != s.ring {
		return fmt.Errorf("load %d samples into ring of %d: %w", len(values), s.ring, ErrLength)
	}
	s.publish(values)
	return nil
}

// Reset drops the completed ring, as if a new cycle just started.
func (s *Sim) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
}

// publish copies values into the completed ring. Caller holds mu.
func (s *Sim) publish(values []uint32) {
	if cap(s.data) >= len(values) {
		s.data = s.data[:len(values)]
	} else {
		s.data = make([]uint32, len(values))
	}
	copy(s.data, values)
}

// runDMA refills the ring once per period until ctx is done.
func (s *Sim) runDMA(ctx context.Context, period time.Duration, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in DMA engine: %v", r)
		}
	}()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var buf []uint32
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			if s.ring == 0 {
				s.mu.Unlock()
				continue
			}
			if cap(buf) < s.ring {
				buf = make([]uint32, s.ring)
			}
			buf = buf[:s.ring]
			s.generate(buf, now.Sub(s.startTime))
			s.publish(buf)
			s.mu.Unlock()
		}
	}
}

// generate fills buf with one sampling cycle ending at elapsed. Caller holds mu.
func (s *Sim) generate(buf []uint32, elapsed time.Duration) {
	ch := gpioChannels[s.pin]
	dt := float32(1) / float32(s.hz)
	end := float32(elapsed.Seconds())
	period := float32(s.cfg.RipplePeriod.Seconds())
	level := float32(s.cfg.Level)
	noise := float32(s.cfg.Noise)

	for i := range buf {
		t := end - float32(len(buf)-i)*dt
		v := level
		if period > 0 {
			v += noise * math32.Sin(2*math32.Pi*t/period)
		}
		v = math32.Max(0, math32.Min(1, v))
		buf[i] = uint32(ch)<<channelShift | uint32(v*0xFFFF)
	}
}

// simContext is the DMA context view of a Sim.
type simContext struct {
	s *Sim
}

func (c simContext) MarkChannel(ch Channel) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.chanInit |= 1 << uint(ch)
}

func (c simContext) ChannelConfigured(ch Channel) bool {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.s.chanInit&(1<<uint(ch)) != 0
}

func (c simContext) Ready() bool {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.s.data != nil
}

func (c simContext) Snapshot(dst []uint32) error {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	if c.s.data == nil {
		return ErrNotReady
	}
	if len(dst) != len(c.s.data) {
		return fmt.Errorf("snapshot %d samples from ring of %d: %w", len(dst), len(c.s.data), ErrLength)
	}
	copy(dst, c.s.data)
	return nil
}
