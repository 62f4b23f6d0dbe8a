package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/rickgao/tradestream/internal/backoff"
	"github.com/rickgao/tradestream/internal/dispatch"
	"github.com/rickgao/tradestream/internal/frame"
	"github.com/rickgao/tradestream/internal/metrics"
	"github.com/rickgao/tradestream/internal/subscription"
)

// Manager owns the realtime connection and its subscriptions.
type Manager interface {
	// Connect opens the connection if it is not already open or opening.
	// credential may be empty. Failures are reported through events, never returned.
	Connect(credential string)

	// Disconnect closes the connection deliberately. Subscriptions and handlers
	// are cleared and no reconnect is attempted.
	Disconnect()

	// Subscribe tracks channel and sends a subscribe command when connected.
	Subscribe(channel string)

	// Unsubscribe stops tracking channel and sends an unsubscribe command when connected.
	Unsubscribe(channel string)

	// On registers handler for an event name (channel or lifecycle event).
	On(event string, handler dispatch.Handler) dispatch.ListenerID

	// Off removes a registration returned by On.
	Off(event string, id dispatch.ListenerID)

	// IsConnected reports whether the connection is open.
	IsConnected() bool

	// State returns the current connection state.
	State() State

	// Stats returns current connection and subscription statistics.
	Stats() ManagerStats
}

// manager implements the Manager interface.
//
// Each connection cycle runs on one goroutine: dial, replay, then the read
// loop. Reconnects are scheduled on the clock and start a fresh goroutine.
// gen identifies the current cycle; work belonging to an older cycle is
// discarded once it observes a different gen.
type manager struct {
	cfg     ManagerConfig
	logger  *slog.Logger
	clock   clockwork.Clock
	dialer  Dialer
	metrics *metrics.Metrics

	dispatcher *dispatch.Dispatcher
	registry   *subscription.Registry

	mu           sync.Mutex
	state        State
	conn         Conn
	gen          uint64
	credential   string
	policy       *backoff.Policy
	timer        clockwork.Timer
	cancelDial   context.CancelFunc
	confirmed    map[string]struct{}
	serverConnID string

	framesReceived atomic.Int64
	framesDropped  atomic.Int64
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultManagerConfig()
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = defaults.ReconnectBaseWait
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaults.MaxReconnectAttempts
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = NewDialer(cfg.HandshakeTimeout, cfg.WriteTimeout)
	}

	m := &manager{
		cfg:        cfg,
		logger:     logger,
		clock:      cfg.Clock,
		dialer:     cfg.Dialer,
		metrics:    cfg.Metrics,
		dispatcher: dispatch.New(logger),
		registry:   subscription.NewRegistry(),
		policy:     backoff.New(cfg.ReconnectBaseWait, cfg.MaxReconnectAttempts),
		confirmed:  make(map[string]struct{}),
	}
	m.dispatcher.SetPanicObserver(m.metrics.HandlerPanicked)
	m.metrics.SetState(int(StateDisconnected))

	return m
}

// Connect starts a new connect cycle unless one is open or in progress.
func (m *manager) Connect(credential string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateOpen || m.state == StateConnecting {
		m.logger.Debug("connect ignored", "state", m.state)
		return
	}

	// A deliberate connect starts a fresh cycle.
	m.stopTimerLocked()
	m.policy.Reset()
	m.credential = credential

	m.beginDialLocked()
}

// Disconnect tears everything down without scheduling a reconnect.
func (m *manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.stopTimerLocked()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	conn := m.conn
	m.conn = nil
	m.setStateLocked(StateClosing)
	m.policy.Reset()
	m.confirmed = make(map[string]struct{})
	m.serverConnID = ""

	m.registry.Clear()
	m.metrics.SetTrackedChannels(0)
	m.dispatcher.Clear()
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(websocket.CloseNormalClosure, "client disconnect"); err != nil {
			m.logger.Debug("close error", "error", err)
		}
	}

	m.mu.Lock()
	if m.gen == gen {
		m.setStateLocked(StateDisconnected)
	}
	m.mu.Unlock()

	m.logger.Info("disconnected", "url", m.cfg.URL)
}

// Subscribe tracks channel; the command is sent now if open, otherwise on the next replay.
func (m *manager) Subscribe(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registry.Add(channel) {
		m.logger.Debug("already subscribed", "channel", channel)
		return
	}
	m.metrics.SetTrackedChannels(m.registry.Len())

	if m.state != StateOpen {
		m.logger.Debug("subscription queued until connected", "channel", channel)
		return
	}

	data, err := frame.EncodeSubscribe(channel)
	if err != nil {
		m.logger.Error("failed to encode subscribe", "channel", channel, "error", err)
		return
	}
	m.sendLocked(data, "channel", channel)
}

// Unsubscribe stops tracking channel. Unknown channels are ignored.
func (m *manager) Unsubscribe(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registry.Remove(channel) {
		return
	}
	m.metrics.SetTrackedChannels(m.registry.Len())

	if m.state != StateOpen {
		return
	}

	data, err := frame.EncodeUnsubscribe(channel)
	if err != nil {
		m.logger.Error("failed to encode unsubscribe", "channel", channel, "error", err)
		return
	}
	m.sendLocked(data, "channel", channel)
}

// On registers handler under event.
func (m *manager) On(event string, handler dispatch.Handler) dispatch.ListenerID {
	return m.dispatcher.On(event, handler)
}

// Off removes a registration.
func (m *manager) Off(event string, id dispatch.ListenerID) {
	m.dispatcher.Off(event, id)
}

// IsConnected returns true only while the connection is open.
func (m *manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateOpen
}

// State returns the current state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return ManagerStats{
		State:              m.state,
		TrackedChannels:    m.registry.Len(),
		ConfirmedChannels:  len(m.confirmed),
		Listeners:          m.dispatcher.Total(),
		ReconnectAttempts:  m.policy.Attempts(),
		FramesReceived:     m.framesReceived.Load(),
		FramesDropped:      m.framesDropped.Load(),
		ServerConnectionID: m.serverConnID,
	}
}

// beginDialLocked starts a new connection cycle. Caller holds m.mu.
func (m *manager) beginDialLocked() {
	m.gen++
	gen := m.gen
	m.setStateLocked(StateConnecting)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel

	go m.run(ctx, gen, m.credential)
}

// run dials, replays subscriptions, and reads until the connection ends.
func (m *manager) run(ctx context.Context, gen uint64, credential string) {
	logger := m.logger.With("attempt_id", uuid.NewString())

	conn, err := m.dial(ctx, credential)
	if err != nil {
		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			return
		}
		m.cancelDial = nil
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()

		logger.Warn("connect failed", "url", m.cfg.URL, "error", err)
		m.handleClosure(gen, closeInfo{Code: websocket.CloseAbnormalClosure, Reason: err.Error()})
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		conn.Close(websocket.CloseNormalClosure, "")
		return
	}
	m.cancelDial = nil
	m.conn = conn
	m.setStateLocked(StateOpen)
	m.policy.Reset()
	m.confirmed = make(map[string]struct{})
	replayed := m.replayLocked()
	m.mu.Unlock()

	logger.Info("connected", "url", m.cfg.URL, "replayed", replayed)
	m.dispatcher.Emit(dispatch.EventConnected, nil)

	m.readLoop(gen, conn, logger)
}

func (m *manager) dial(ctx context.Context, credential string) (Conn, error) {
	target, err := BuildTarget(m.cfg.URL, credential)
	if err != nil {
		return nil, err
	}
	return m.dialer.Dial(ctx, target)
}

// replayLocked sends one subscribe per tracked channel, in insertion order.
// Caller holds m.mu, so no consumer subscribe can interleave.
func (m *manager) replayLocked() int {
	channels := m.registry.Channels()
	for _, channel := range channels {
		data, err := frame.EncodeSubscribe(channel)
		if err != nil {
			m.logger.Error("failed to encode subscribe", "channel", channel, "error", err)
			continue
		}
		m.sendLocked(data, "channel", channel)
	}
	return len(channels)
}

// readLoop processes inbound frames in order until the connection fails.
func (m *manager) readLoop(gen uint64, conn Conn, logger *slog.Logger) {
	for {
		if m.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		}

		data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			if gen != m.gen {
				m.mu.Unlock()
				return
			}
			m.conn = nil
			m.confirmed = make(map[string]struct{})
			m.setStateLocked(StateDisconnected)
			m.mu.Unlock()

			conn.Close(websocket.CloseNormalClosure, "")

			info := closeInfoFromError(err)
			logger.Warn("connection closed",
				"code", info.Code,
				"reason", info.Reason,
			)
			m.handleClosure(gen, info)
			return
		}

		m.route(gen, conn, data, logger)
	}
}

// route dispatches one inbound frame.
func (m *manager) route(gen uint64, conn Conn, data []byte, logger *slog.Logger) {
	f, err := frame.Decode(data)
	if err != nil {
		m.framesDropped.Add(1)
		m.metrics.FrameDropped()
		logger.Warn("dropping malformed frame", "error", err, "size", len(data))
		return
	}
	m.framesReceived.Add(1)
	m.metrics.FrameReceived(string(f.Kind))

	switch f.Kind {
	case frame.KindConnected:
		id, err := uuid.Parse(f.ConnectionID)
		if err != nil {
			logger.Debug("server connection id is not a uuid", "connection_id", f.ConnectionID)
		}
		m.mu.Lock()
		if gen == m.gen {
			m.serverConnID = f.ConnectionID
		}
		m.mu.Unlock()
		logger.Debug("server accepted connection", "connection_id", id)

	case frame.KindSubscribed:
		m.mu.Lock()
		if gen == m.gen {
			m.confirmed[f.Channel] = struct{}{}
		}
		m.mu.Unlock()
		logger.Debug("subscribed", "channel", f.Channel)

	case frame.KindUnsubscribed:
		m.mu.Lock()
		if gen == m.gen {
			delete(m.confirmed, f.Channel)
		}
		m.mu.Unlock()
		logger.Debug("unsubscribed", "channel", f.Channel)

	case frame.KindHeartbeat:
		ping, err := frame.EncodePing(f.Timestamp)
		if err != nil {
			logger.Warn("failed to encode ping", "error", err)
			return
		}
		m.mu.Lock()
		if gen == m.gen && m.conn == conn {
			m.sendLocked(ping)
		}
		m.mu.Unlock()

	case frame.KindPong:
		logger.Debug("pong", "timestamp", string(f.Timestamp))

	case frame.KindData:
		if !m.current(gen) {
			logger.Debug("dropping data from superseded connection", "channel", f.Channel)
			return
		}
		if m.dispatcher.Count(f.Channel) == 0 {
			logger.Debug("data for channel without handlers", "channel", f.Channel)
		}
		m.dispatcher.Emit(f.Channel, f.Payload)

	case frame.KindError:
		logger.Warn("server error", "message", f.Message)
		if !m.current(gen) {
			return
		}
		m.dispatcher.Emit(dispatch.EventError, f.Raw)

	default:
		logger.Debug("ignoring unknown frame", "type", f.RawKind)
	}
}

// current reports whether gen is still the active connection cycle.
func (m *manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// handleClosure reports an abnormal closure and schedules the next attempt.
func (m *manager) handleClosure(gen uint64, info closeInfo) {
	payload, _ := json.Marshal(info)
	m.dispatcher.Emit(dispatch.EventDisconnected, payload)
	m.scheduleReconnect(gen)
}

// scheduleReconnect arms the reconnect timer, or gives up when the policy is exhausted.
func (m *manager) scheduleReconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}

	delay, ok := m.policy.Next()
	if !ok {
		attempts := m.policy.Attempts()
		m.mu.Unlock()

		m.logger.Error("reconnect attempts exhausted", "url", m.cfg.URL, "attempts", attempts)
		m.metrics.ReconnectExhausted()
		payload, _ := json.Marshal(giveUpInfo{Attempts: attempts})
		m.dispatcher.Emit(dispatch.EventReconnectFailed, payload)
		return
	}

	attempt := m.policy.Attempts()
	m.timer = m.clock.AfterFunc(delay, func() { m.retry(gen) })
	m.mu.Unlock()

	m.metrics.ReconnectScheduled()
	m.logger.Info("reconnect scheduled",
		"attempt", attempt,
		"max_attempts", m.policy.MaxAttempts(),
		"delay", delay,
	)
}

// retry fires from the reconnect timer.
func (m *manager) retry(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != StateDisconnected {
		return
	}
	m.timer = nil
	m.beginDialLocked()
}

// sendLocked writes data to the open connection. Caller holds m.mu.
// Write failures are logged; the read loop observes the broken connection.
func (m *manager) sendLocked(data []byte, attrs ...any) {
	if m.conn == nil {
		m.logger.Debug("send skipped", append(attrs, "error", ErrNotConnected)...)
		return
	}
	if err := m.conn.WriteMessage(data); err != nil {
		m.logger.Warn("send failed", append(attrs, "error", err)...)
	}
}

func (m *manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *manager) setStateLocked(s State) {
	m.state = s
	m.metrics.SetState(int(s))
}
