package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *StreamConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Realtime.validate("realtime"); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Channels))
	for i, ch := range c.Channels {
		if strings.TrimSpace(ch) == "" {
			return fmt.Errorf("channels[%d] must not be empty", i)
		}
		if seen[ch] {
			return fmt.Errorf("channels[%d] duplicates %q", i, ch)
		}
		seen[ch] = true
	}

	if c.Relay.Enabled {
		if c.Relay.Redis.Addr == "" {
			return errors.New("relay.redis.addr is required when relay is enabled")
		}
		if c.Relay.Redis.DB < 0 {
			return fmt.Errorf("relay.redis.db must be >= 0, got %d", c.Relay.Redis.DB)
		}
		if c.Relay.PublishTimeout <= 0 {
			return errors.New("relay.publish_timeout must be > 0")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	return nil
}

func (r *RealtimeConfig) validate(prefix string) error {
	if r.URL == "" {
		return fmt.Errorf("%s.url is required", prefix)
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%s.url is invalid: %w", prefix, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%s.url scheme must be ws or wss, got %q", prefix, u.Scheme)
	}
	if r.ReconnectBaseDelay <= 0 {
		return fmt.Errorf("%s.reconnect_base_delay must be > 0", prefix)
	}
	if r.MaxReconnectAttempts < 1 {
		return fmt.Errorf("%s.max_reconnect_attempts must be >= 1", prefix)
	}
	if r.ReadTimeout < 0 {
		return fmt.Errorf("%s.read_timeout must be >= 0", prefix)
	}
	return nil
}
