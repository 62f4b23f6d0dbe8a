// Package relay republishes realtime channel payloads to Redis pub/sub so
// other local processes can consume the stream without their own connection.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rickgao/tradestream/internal/dispatch"
	"github.com/rickgao/tradestream/internal/metrics"
)

// DefaultPublishTimeout bounds a single Redis PUBLISH.
const DefaultPublishTimeout = 2 * time.Second

// Source delivers channel payloads. connection.Manager satisfies it.
type Source interface {
	On(event string, handler dispatch.Handler) dispatch.ListenerID
	Off(event string, id dispatch.ListenerID)
}

// Config configures a Relay.
type Config struct {
	Prefix         string        // Prepended to the channel name to form the Redis channel
	PublishTimeout time.Duration // Per-publish deadline
}

// Relay forwards payloads of attached channels to Redis.
type Relay struct {
	client  redis.Cmdable
	source  Source
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	attached map[string]dispatch.ListenerID
}

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}

// New creates a Relay. m may be nil.
func New(client redis.Cmdable, source Source, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	return &Relay{
		client:   client,
		source:   source,
		cfg:      cfg,
		logger:   logger.With("component", "relay"),
		metrics:  m,
		attached: make(map[string]dispatch.ListenerID),
	}
}

// Attach starts forwarding channel and returns false if it was already
// attached. An existing registration is always replaced: Manager.Disconnect
// drops every handler on the source, so the old ID may no longer be live.
func (r *Relay) Attach(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, existed := r.attached[channel]
	if existed {
		r.source.Off(channel, old)
	}
	r.attached[channel] = r.source.On(channel, func(payload json.RawMessage) {
		r.publish(channel, payload)
	})
	r.logger.Debug("attached", "channel", channel, "target", r.Target(channel), "refreshed", existed)
	return !existed
}

// Detach stops forwarding channel. Returns false if it was not attached.
func (r *Relay) Detach(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.attached[channel]
	if !ok {
		return false
	}
	r.source.Off(channel, id)
	delete(r.attached, channel)
	return true
}

// Channels returns the attached channels, sorted.
func (r *Relay) Channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.attached))
	for ch := range r.attached {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Close detaches every channel.
func (r *Relay) Close() {
	for _, ch := range r.Channels() {
		r.Detach(ch)
	}
}

// Target returns the Redis channel that channel is published to.
func (r *Relay) Target(channel string) string {
	return r.cfg.Prefix + channel
}

// publish runs on the connection's reader goroutine, so it is bounded by
// PublishTimeout. Failures are logged and counted, never returned.
func (r *Relay) publish(channel string, payload json.RawMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PublishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, r.Target(channel), message(payload)).Err(); err != nil {
		r.metrics.RelayFailure(channel)
		r.logger.Warn("publish failed", "channel", channel, "error", err)
		return
	}
	r.metrics.RelayPublish(channel)
}

// message unquotes JSON string payloads so pipe-delimited feeds are
// republished in their original form. Other payloads pass through as JSON.
func message(payload json.RawMessage) string {
	if len(payload) > 0 && payload[0] == '"' {
		var s string
		if err := json.Unmarshal(payload, &s); err == nil {
			return s
		}
	}
	return string(payload)
}
