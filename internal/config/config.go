package config

import "time"

// StreamConfig is the root configuration for a streaming client instance.
type StreamConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Channels []string       `yaml:"channels"`
	Relay    RelayConfig    `yaml:"relay"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this client.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// RealtimeConfig holds the realtime endpoint and connection manager settings.
type RealtimeConfig struct {
	URL                  string        `yaml:"url"`
	Token                string        `yaml:"token"` // Sent as the token query parameter; may be empty
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	ReadTimeout          time.Duration `yaml:"read_timeout"` // 0 disables stale detection
}

// RelayConfig holds the Redis fan-out settings.
type RelayConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Redis          RedisConfig   `yaml:"redis"`
	Prefix         string        `yaml:"prefix"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// RedisConfig holds a single Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
