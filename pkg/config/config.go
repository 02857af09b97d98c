package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Channel kinds.
const (
	KindDigital = "digital"
	KindAnalog  = "analog"
)

// Source kinds.
const (
	SourceSerial = "serial"
	SourceMock   = "mock"
)

// Config represents the responder configuration. It is loaded once at startup
// and handed to the components by pointer; nothing mutates it afterwards.
type Config struct {
	Network  NetworkConfig   `yaml:"network"`
	Server   ServerConfig    `yaml:"server"`
	Source   SourceConfig    `yaml:"source"`
	Channels []ChannelConfig `yaml:"channels"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
	Monitor  MonitorConfig   `yaml:"monitor"`
	Metrics  MetricsConfig   `yaml:"metrics"`
}

// NetworkConfig contains wireless credentials and association retry policy.
type NetworkConfig struct {
	SSID       string        `yaml:"ssid"`
	Password   string        `yaml:"password"`
	Attempts   int           `yaml:"attempts"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// ServerConfig contains polling server parameters.
type ServerConfig struct {
	Port          int           `yaml:"port"`
	AcceptTimeout time.Duration `yaml:"accept_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"` // 0 = no read deadline
	BufferSize    int           `yaml:"buffer_size"`
	LoopInterval  time.Duration `yaml:"loop_interval"`
	Board         string        `yaml:"board"` // Reported by the fallback route
}

// SourceConfig selects where raw channel readings come from.
type SourceConfig struct {
	Kind       string        `yaml:"kind"` // serial or mock
	Port       string        `yaml:"port"`
	BaudRate   int           `yaml:"baud_rate"`
	SampleRate time.Duration `yaml:"sample_rate"` // Mock motion rate (0 = static values)
	StaleAfter time.Duration `yaml:"stale_after"` // Serial samples older than this fail to read
}

// ChannelConfig describes one tracked physical input.
type ChannelConfig struct {
	Name      string `yaml:"name"`
	Group     string `yaml:"group"` // Optional, nests the channel in the data payload
	Kind      string `yaml:"kind"`
	Input     int    `yaml:"input"`     // Field index in the source sample
	Max       int    `yaml:"max"`       // Raw maximum for analog channels
	Threshold int    `yaml:"threshold"` // Minimum normalized change to report
}

// MQTTConfig contains the optional transition publisher settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // Empty disables publishing
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// MetricsConfig controls the Prometheus endpoint of the responder.
type MetricsConfig struct {
	Address string `yaml:"address"` // e.g. ":9100"; empty disables the endpoint
}

// MonitorConfig contains the desktop monitor settings.
type MonitorConfig struct {
	Address   string        `yaml:"address"` // Responder base URL
	Interval  time.Duration `yaml:"interval"`
	Threshold int           `yaml:"threshold"` // Minimum percentage change shown
	Window    time.Duration `yaml:"window"`    // Trend plot time span
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			Attempts:   10,
			RetryDelay: time.Second,
		},
		Server: ServerConfig{
			Port:          8080,
			AcceptTimeout: 50 * time.Millisecond,
			ReadTimeout:   0,
			BufferSize:    1024,
			LoopInterval:  10 * time.Millisecond,
			Board:         "ESP32/ESP8266",
		},
		Source: SourceConfig{
			Kind:       SourceSerial,
			Port:       "/dev/ttyACM0",
			BaudRate:   115200,
			StaleAfter: 2 * time.Second,
		},
		Channels: []ChannelConfig{
			{Name: "switch1", Kind: KindDigital, Input: 0},
			{Name: "switch2", Kind: KindDigital, Input: 1},
		},
		MQTT: MQTTConfig{
			TopicPrefix: "gopanel",
		},
		Monitor: MonitorConfig{
			Address:   "http://localhost:8080",
			Interval:  150 * time.Millisecond,
			Threshold: 2,
			Window:    30 * time.Second,
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

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

// Validate checks the channel layout and server parameters.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port out of range: %d", c.Server.Port))
	}
	if c.Monitor.Threshold < 0 {
		errs = append(errs, fmt.Errorf("monitor threshold must not be negative"))
	}
	if c.Source.Kind != SourceSerial && c.Source.Kind != SourceMock {
		errs = append(errs, fmt.Errorf("unknown source kind %q", c.Source.Kind))
	}

	seen := make(map[string]bool, len(c.Channels))
	for i, ch := range c.Channels {
		key := ch.Group + "/" + ch.Name
		switch {
		case ch.Name == "":
			errs = append(errs, fmt.Errorf("channel %d: name is required", i))
		case seen[key]:
			errs = append(errs, fmt.Errorf("channel %q: duplicate name", ch.Name))
		}
		seen[key] = true

		switch ch.Kind {
		case KindDigital:
		case KindAnalog:
			if ch.Max <= 0 {
				errs = append(errs, fmt.Errorf("channel %q: analog max must be positive", ch.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("channel %q: unknown kind %q", ch.Name, ch.Kind))
		}
		if ch.Input < 0 {
			errs = append(errs, fmt.Errorf("channel %q: negative input", ch.Name))
		}
		if ch.Threshold < 0 {
			errs = append(errs, fmt.Errorf("channel %q: negative threshold", ch.Name))
		}
	}

	// Groups and ungrouped channels share the top level of the data payload.
	for _, ch := range c.Channels {
		if ch.Group != "" && seen["/"+ch.Group] {
			errs = append(errs, fmt.Errorf("group %q collides with a channel name", ch.Group))
			break
		}
	}

	return errors.Join(errs...)
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Network.Attempts == 0 {
		c.Network.Attempts = def.Network.Attempts
	}
	if c.Network.RetryDelay == 0 {
		c.Network.RetryDelay = def.Network.RetryDelay
	}

	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.AcceptTimeout == 0 {
		c.Server.AcceptTimeout = def.Server.AcceptTimeout
	}
	if c.Server.BufferSize == 0 {
		c.Server.BufferSize = def.Server.BufferSize
	}
	if c.Server.LoopInterval == 0 {
		c.Server.LoopInterval = def.Server.LoopInterval
	}
	if c.Server.Board == "" {
		c.Server.Board = def.Server.Board
	}

	if c.Source.Kind == "" {
		c.Source.Kind = def.Source.Kind
	}
	if c.Source.Port == "" {
		c.Source.Port = def.Source.Port
	}
	if c.Source.BaudRate == 0 {
		c.Source.BaudRate = def.Source.BaudRate
	}
	if c.Source.StaleAfter == 0 {
		c.Source.StaleAfter = def.Source.StaleAfter
	}

	if len(c.Channels) == 0 {
		c.Channels = def.Channels
	}
	for i := range c.Channels {
		if c.Channels[i].Kind == "" {
			c.Channels[i].Kind = KindDigital
		}
	}

	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}

	if c.Monitor.Address == "" {
		c.Monitor.Address = def.Monitor.Address
	}
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = def.Monitor.Interval
	}
	if c.Monitor.Window == 0 {
		c.Monitor.Window = def.Monitor.Window
	}
}
