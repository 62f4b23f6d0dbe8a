package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tradestream"

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FramesReceived      *prometheus.CounterVec
	FramesDropped       prometheus.Counter
	ReconnectAttempts   prometheus.Counter
	ReconnectsExhausted prometheus.Counter
	HandlerPanics       *prometheus.CounterVec
	ConnectionState     prometheus.Gauge
	TrackedChannels     prometheus.Gauge
	RelayPublished      *prometheus.CounterVec
	RelayFailures       *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_received_total",
				Help:      "Inbound frames decoded, by frame kind",
			},
			[]string{"kind"},
		),

		FramesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_dropped_total",
				Help:      "Inbound frames dropped because they could not be decoded",
			},
		),

		ReconnectAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnect_attempts_total",
				Help:      "Reconnect timers scheduled after an abnormal closure",
			},
		),

		ReconnectsExhausted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnects_exhausted_total",
				Help:      "Connect cycles that gave up after the maximum number of attempts",
			},
		),

		HandlerPanics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_panics_total",
				Help:      "Recovered panics in event handlers, by event",
			},
			[]string{"event"},
		),

		ConnectionState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connection_state",
				Help:      "Connection state (0=disconnected, 1=connecting, 2=open, 3=closing)",
			},
		),

		TrackedChannels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tracked_channels",
				Help:      "Channels currently held in the subscription registry",
			},
		),

		RelayPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_published_total",
				Help:      "Payloads republished to Redis, by channel",
			},
			[]string{"channel"},
		),

		RelayFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_failures_total",
				Help:      "Failed Redis publishes, by channel",
			},
			[]string{"channel"},
		),
	}

	collectors := []prometheus.Collector{
		m.FramesReceived,
		m.FramesDropped,
		m.ReconnectAttempts,
		m.ReconnectsExhausted,
		m.HandlerPanics,
		m.ConnectionState,
		m.TrackedChannels,
		m.RelayPublished,
		m.RelayFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// FrameReceived counts one decoded frame.
func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(kind).Inc()
}

// FrameDropped counts one undecodable frame.
func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

// ReconnectScheduled counts one scheduled reconnect.
func (m *Metrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

// ReconnectExhausted counts one give-up.
func (m *Metrics) ReconnectExhausted() {
	if m == nil {
		return
	}
	m.ReconnectsExhausted.Inc()
}

// HandlerPanicked counts one recovered handler panic.
func (m *Metrics) HandlerPanicked(event string) {
	if m == nil {
		return
	}
	m.HandlerPanics.WithLabelValues(event).Inc()
}

// SetState records the connection state as its numeric value.
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(state))
}

// SetTrackedChannels records the registry size.
func (m *Metrics) SetTrackedChannels(n int) {
	if m == nil {
		return
	}
	m.TrackedChannels.Set(float64(n))
}

// RelayPublish counts one relayed payload.
func (m *Metrics) RelayPublish(channel string) {
	if m == nil {
		return
	}
	m.RelayPublished.WithLabelValues(channel).Inc()
}

// RelayFailure counts one failed relay publish.
func (m *Metrics) RelayFailure(channel string) {
	if m == nil {
		return
	}
	m.RelayFailures.WithLabelValues(channel).Inc()
}
