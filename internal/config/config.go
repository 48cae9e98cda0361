package config

import (
	"time"

	"github.com/parkingrobot/odd-telemetry/internal/connection"
	"github.com/parkingrobot/odd-telemetry/internal/state"
)

// Config is the root configuration for a telemetry client instance.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	State     StateConfig     `yaml:"state"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// BridgeConfig holds the WebSocket bridge endpoint and transport settings.
type BridgeConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"` // negative disables the heartbeat
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// ReconnectConfig holds the reconnect policy.
type ReconnectConfig struct {
	Delay    time.Duration `yaml:"delay"`
	Backoff  bool          `yaml:"backoff"`   // Double the delay per failure, up to MaxDelay
	MaxDelay time.Duration `yaml:"max_delay"` // Only used with Backoff
}

// StateConfig sizes the state store.
type StateConfig struct {
	FeedbackExpiry time.Duration `yaml:"feedback_expiry"`
	LogCapacity    int           `yaml:"log_capacity"`
}

// RecorderConfig holds the optional TimescaleDB telemetry recorder.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the HTTP server settings. The server also serves
// /health, /state and /command.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds process logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// ManagerConfig converts the bridge and reconnect sections.
func (c *Config) ManagerConfig() connection.ManagerConfig {
	client := connection.DefaultClientConfig()
	client.URL = c.Bridge.URL
	client.HandshakeTimeout = c.Bridge.HandshakeTimeout
	client.WriteTimeout = c.Bridge.WriteTimeout
	client.PingInterval = c.Bridge.PingInterval
	if client.PingInterval < 0 {
		client.PingInterval = 0
	}
	client.PingTimeout = c.Bridge.PingTimeout
	client.BufferSize = c.Bridge.BufferSize

	return connection.ManagerConfig{
		URL:               c.Bridge.URL,
		Client:            client,
		ReconnectDelay:    c.Reconnect.Delay,
		ReconnectBackoff:  c.Reconnect.Backoff,
		ReconnectMaxDelay: c.Reconnect.MaxDelay,
	}
}

// StoreConfig converts the state section.
func (c *Config) StoreConfig() state.Config {
	return state.Config{
		FeedbackExpiry: c.State.FeedbackExpiry,
		LogCapacity:    c.State.LogCapacity,
	}
}
