// streamtest connects to the realtime endpoint, subscribes to channels, and
// streams decoded messages to the console.
// Usage: go run ./cmd/streamtest --config configs/streamtest.example.yaml
//
// The credential is read from the config file (usually ${TRADESTREAM_TOKEN})
// or the --token flag.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/tradestream/internal/config"
	"github.com/rickgao/tradestream/internal/connection"
	"github.com/rickgao/tradestream/internal/dispatch"
	"github.com/rickgao/tradestream/internal/metrics"
	"github.com/rickgao/tradestream/internal/relay"
	"github.com/rickgao/tradestream/internal/version"
)

const exampleUsage = `  streamtest --url ws://localhost:8000/ws --channel prices:ETH-USDT --channel trades:ETH-USDT
  TRADESTREAM_TOKEN=abc123 streamtest --config configs/streamtest.example.yaml --verbose`

type options struct {
	configPath   string
	url          string
	token        string
	channels     []string
	logLevel     string
	verbose      bool
	exitOnGiveUp bool
	statsEvery   time.Duration
}

func main() {
	var opts options

	root := &cobra.Command{
		Use:     "streamtest",
		Short:   "Stream realtime channels to the console",
		Example: exampleUsage,
		Version: version.String(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts)
		},
		SilenceUsage: true,
	}

	bindFlags(root, &opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("streamtest", "error", err)
		os.Exit(1)
	}
}

// bindFlags registers the command-line flags on cmd.
func bindFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to config file")
	f.StringVar(&opts.url, "url", config.DefaultURL, "realtime WebSocket endpoint")
	f.StringVar(&opts.token, "token", "", "credential sent as the token query parameter")
	f.StringArrayVar(&opts.channels, "channel", nil, "channel to subscribe to (repeatable)")
	f.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error")
	f.BoolVar(&opts.verbose, "verbose", false, "print full payload JSON")
	f.BoolVar(&opts.exitOnGiveUp, "exit-on-give-up", false, "exit once reconnect attempts are exhausted")
	f.DurationVar(&opts.statsEvery, "stats-interval", 10*time.Second, "interval between stats log lines (0 disables)")
}

// loadConfig reads the config file if given and layers the flags the user
// set on top of it.
func loadConfig(cmd *cobra.Command, opts options) (*config.StreamConfig, error) {
	flags := cmd.Flags()

	return config.LoadAndValidate(opts.configPath, func(cfg *config.StreamConfig) {
		if flags.Changed("url") {
			cfg.Realtime.URL = opts.url
		}
		if flags.Changed("token") {
			cfg.Realtime.Token = opts.token
		}
		if flags.Changed("channel") {
			cfg.Channels = opts.channels
		}
		if flags.Changed("log-level") {
			cfg.Log.Level = opts.logLevel
		}
		if cfg.Instance.ID == "" {
			cfg.Instance.ID = "streamtest-" + uuid.NewString()[:8]
		}
	})
}

func run(ctx context.Context, cfg *config.StreamConfig, opts options) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	})).With("instance_id", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting streamtest",
		"version", version.Resolved(),
		"commit", version.Commit,
		"url", cfg.Realtime.URL,
		"channels", len(cfg.Channels),
	)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Connection Manager
	mgr := connection.NewManager(connection.ManagerConfig{
		URL:                  cfg.Realtime.URL,
		ReconnectBaseWait:    cfg.Realtime.ReconnectBaseDelay,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		HandshakeTimeout:     cfg.Realtime.HandshakeTimeout,
		WriteTimeout:         cfg.Realtime.WriteTimeout,
		ReadTimeout:          cfg.Realtime.ReadTimeout,
		Metrics:              m,
	}, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mgr.On(dispatch.EventConnected, func(json.RawMessage) {
		logger.Info("stream connected", "channels", mgr.Stats().TrackedChannels)
	})
	mgr.On(dispatch.EventDisconnected, func(p json.RawMessage) {
		logger.Warn("stream disconnected", "detail", string(p))
	})
	mgr.On(dispatch.EventError, func(p json.RawMessage) {
		logger.Warn("server error", "frame", string(p))
	})
	mgr.On(dispatch.EventReconnectFailed, func(p json.RawMessage) {
		logger.Error("giving up on reconnect", "detail", string(p))
		if opts.exitOnGiveUp {
			cancel()
		}
	})

	p := newPrinter(os.Stdout, opts.verbose)
	for _, ch := range cfg.Channels {
		mgr.On(ch, func(payload json.RawMessage) { p.Print(ch, payload) })
		mgr.Subscribe(ch)
	}

	// Optional Redis relay
	if cfg.Relay.Enabled {
		rdb, err := relay.NewRedisClient(ctx, cfg.Relay.Redis.Addr, cfg.Relay.Redis.Password, cfg.Relay.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		rl := relay.New(rdb, mgr, relay.Config{
			Prefix:         cfg.Relay.Prefix,
			PublishTimeout: cfg.Relay.PublishTimeout,
		}, logger, m)
		defer rl.Close()

		for _, ch := range cfg.Channels {
			rl.Attach(ch)
		}
		logger.Info("relay enabled", "redis", cfg.Relay.Redis.Addr, "prefix", cfg.Relay.Prefix)
	}

	mgr.Connect(cfg.Realtime.Token)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHTTPHandler(cfg.Metrics.Path, reg, mgr),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	if opts.statsEvery > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opts.statsEvery)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					s := mgr.Stats()
					logger.Info("stats",
						"state", s.State,
						"tracked", s.TrackedChannels,
						"confirmed", s.ConfirmedChannels,
						"frames_received", s.FramesReceived,
						"frames_dropped", s.FramesDropped,
						"reconnect_attempts", s.ReconnectAttempts,
					)
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		mgr.Disconnect()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("streaming started - press Ctrl+C to stop")

	err = g.Wait()
	logger.Info("streamtest stopped")
	return err
}

// newHTTPHandler serves metrics and a health summary of the connection.
func newHTTPHandler(metricsPath string, reg *prometheus.Registry, mgr connection.Manager) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s := mgr.Stats()

		health := struct {
			Status             string `json:"status"`
			State              string `json:"state"`
			TrackedChannels    int    `json:"tracked_channels"`
			ConfirmedChannels  int    `json:"confirmed_channels"`
			ReconnectAttempts  int    `json:"reconnect_attempts"`
			ServerConnectionID string `json:"server_connection_id,omitempty"`
		}{
			Status:             "healthy",
			State:              s.State.String(),
			TrackedChannels:    s.TrackedChannels,
			ConfirmedChannels:  s.ConfirmedChannels,
			ReconnectAttempts:  s.ReconnectAttempts,
			ServerConnectionID: s.ServerConnectionID,
		}

		w.Header().Set("Content-Type", "application/json")
		if s.State != connection.StateOpen {
			health.Status = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
