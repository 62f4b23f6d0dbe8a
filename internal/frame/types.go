package frame

import (
	"encoding/json"
	"errors"
)

// Errors
var (
	ErrMalformed        = errors.New("malformed frame")
	ErrMissingKind      = errors.New("frame has no type")
	ErrMissingChannel   = errors.New("data frame has no channel")
	ErrMissingTimestamp = errors.New("heartbeat frame has no timestamp")
)

// Kind identifies the type of an inbound frame.
type Kind string

const (
	KindConnected    Kind = "connected"
	KindSubscribed   Kind = "subscribed"
	KindUnsubscribed Kind = "unsubscribed"
	KindHeartbeat    Kind = "heartbeat"
	KindPong         Kind = "pong"
	KindData         Kind = "data"
	KindError        Kind = "error"
	KindUnknown      Kind = "unknown"
)

// Action identifies an outbound command.
type Action string

const (
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
	ActionPing        Action = "ping"
)

// Frame is a decoded inbound frame. Only the fields relevant to Kind are set.
type Frame struct {
	Kind    Kind
	RawKind string // Kind as sent by the server, kept for unknown kinds

	Channel      string          // data, subscribed, unsubscribed
	Payload      json.RawMessage // data (opaque, owned by the server)
	Timestamp    json.RawMessage // heartbeat, pong, connected, data (echoed verbatim)
	Message      string          // error
	ConnectionID string          // connected

	Raw []byte // Full frame as received
}

// Command is an outbound client command.
type Command struct {
	Action    Action          `json:"action"`
	Channel   string          `json:"channel,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// envelope is the wire shape of every inbound frame.
type envelope struct {
	Type         string          `json:"type"`
	Kind         string          `json:"kind"` // accepted when "type" is absent
	Channel      string          `json:"channel"`
	Data         json.RawMessage `json:"data"`
	Payload      json.RawMessage `json:"payload"` // accepted when "data" is absent
	Timestamp    json.RawMessage `json:"timestamp"`
	Message      string          `json:"message"`
	ConnectionID string          `json:"connection_id"`
}
