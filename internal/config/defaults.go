package config

import (
	"log/slog"
	"strings"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultURL                  = "ws://localhost:8000/ws"
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultRedisAddr            = "localhost:6379"
	DefaultRelayPrefix          = "tradestream:"
	DefaultPublishTimeout       = 2 * time.Second
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultLogLevel             = "info"
)

// ApplyDefaults fills unset optional fields. Exported so flag-only runs
// without a config file get the same values.
func (c *StreamConfig) ApplyDefaults() {
	// Realtime defaults
	if c.Realtime.URL == "" {
		c.Realtime.URL = DefaultURL
	}
	if c.Realtime.ReconnectBaseDelay == 0 {
		c.Realtime.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Realtime.MaxReconnectAttempts == 0 {
		c.Realtime.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Realtime.HandshakeTimeout == 0 {
		c.Realtime.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Realtime.WriteTimeout == 0 {
		c.Realtime.WriteTimeout = DefaultWriteTimeout
	}

	// Relay defaults
	if c.Relay.Redis.Addr == "" {
		c.Relay.Redis.Addr = DefaultRedisAddr
	}
	if c.Relay.Prefix == "" {
		c.Relay.Prefix = DefaultRelayPrefix
	}
	if c.Relay.PublishTimeout == 0 {
		c.Relay.PublishTimeout = DefaultPublishTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// SlogLevel maps the configured level name to a slog.Level.
// Unknown names map to Info; Validate rejects them first.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
