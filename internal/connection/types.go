package connection

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rickgao/tradestream/internal/backoff"
	"github.com/rickgao/tradestream/internal/metrics"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// State is the connection state machine.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// CredentialParam is the query parameter carrying the connect credential.
const CredentialParam = "token"

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL                  string        // WebSocket endpoint (e.g., ws://localhost:8000/ws)
	ReconnectBaseWait    time.Duration // Delay before the first reconnect attempt; doubles per attempt
	MaxReconnectAttempts int           // Attempts before giving up
	HandshakeTimeout     time.Duration // WebSocket handshake timeout
	WriteTimeout         time.Duration // Write deadline for sends
	ReadTimeout          time.Duration // Max silence before the connection is treated as dead (0 = never)

	Clock   clockwork.Clock  // Schedules reconnect timers (nil = real clock)
	Dialer  Dialer           // Transport (nil = gorilla/websocket)
	Metrics *metrics.Metrics // Optional
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectBaseWait:    backoff.DefaultBase,
		MaxReconnectAttempts: backoff.DefaultMaxAttempts,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         5 * time.Second,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State              State
	TrackedChannels    int    // Channels the consumer wants
	ConfirmedChannels  int    // Channels acknowledged by the server on this connection
	Listeners          int    // Registered event handlers
	ReconnectAttempts  int    // Attempts consumed in the current connect cycle
	FramesReceived     int64  // Decoded inbound frames
	FramesDropped      int64  // Undecodable inbound frames
	ServerConnectionID string // From the server's connected frame
}

// closeInfo is the payload of the "disconnected" event.
type closeInfo struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// giveUpInfo is the payload of the "reconnect_failed" event.
type giveUpInfo struct {
	Attempts int `json:"attempts"`
}
