package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	ADC    ADCConfig    `yaml:"adc"`
	Poll   PollConfig   `yaml:"poll"`
	Sim    SimConfig    `yaml:"sim"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ADCConfig contains the sampler channel configuration.
type ADCConfig struct {
	Pin       int    `yaml:"pin"`       // GPIO number, see adc.ValidPin
	Frequency uint32 `yaml:"frequency"` // Conversion rate in Hz (500..16000)
	Samples   int    `yaml:"samples"`   // DMA ring size
}

// PollConfig controls how the host waits for a finished sampling cycle.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Window   int           `yaml:"window"` // Readings in the monitor moving average
}

// SimConfig contains simulated peripheral configuration.
type SimConfig struct {
	Level        float64       `yaml:"level"`         // Signal level as a fraction of full scale (0..1)
	Noise        float64       `yaml:"noise"`         // Ripple amplitude as a fraction of full scale
	RipplePeriod time.Duration `yaml:"ripple_period"` // Ripple period
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 2000000, // BL602 bootloader console speed
		},
		ADC: ADCConfig{
			Pin:       11, // PineCone blue LED
			Frequency: 10000,
			Samples:   1000, // 0.1 s at 10 kHz
		},
		Poll: PollConfig{
			Interval: 50 * time.Millisecond,
			Timeout:  2 * time.Second,
			Window:   10,
		},
		Sim: SimConfig{
			Level:        0.5,
			Noise:        0.01,
			RipplePeriod: time.Second,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.ADC.Pin == 0 {
		c.ADC.Pin = def.ADC.Pin
	}
	if c.ADC.Frequency == 0 {
		c.ADC.Frequency = def.ADC.Frequency
	}
	if c.ADC.Samples == 0 {
		c.ADC.Samples = def.ADC.Samples
	}

	if c.Poll.Interval == 0 {
		c.Poll.Interval = def.Poll.Interval
	}
	if c.Poll.Timeout == 0 {
		c.Poll.Timeout = def.Poll.Timeout
	}
	if c.Poll.Window == 0 {
		c.Poll.Window = def.Poll.Window
	}

	if c.Sim.RipplePeriod == 0 {
		c.Sim.RipplePeriod = def.Sim.RipplePeriod
	}
}
