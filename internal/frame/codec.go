package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode parses a raw inbound frame and validates its envelope.
// Unrecognised kinds are not an error; they decode to KindUnknown.
func Decode(data []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Frame{}, ErrMalformed
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rawKind := env.Type
	if rawKind == "" {
		rawKind = env.Kind
	}
	if rawKind == "" {
		return Frame{}, ErrMissingKind
	}

	f := Frame{
		Kind:      parseKind(rawKind),
		RawKind:   rawKind,
		Channel:   env.Channel,
		Timestamp: present(env.Timestamp),
		Raw:       data,
	}

	switch f.Kind {
	case KindData:
		if f.Channel == "" {
			return Frame{}, ErrMissingChannel
		}
		f.Payload = present(env.Data)
		if f.Payload == nil {
			f.Payload = present(env.Payload)
		}
	case KindHeartbeat:
		if f.Timestamp == nil {
			return Frame{}, ErrMissingTimestamp
		}
	case KindError:
		f.Message = env.Message
	case KindConnected:
		f.ConnectionID = env.ConnectionID
	}

	return f, nil
}

// EncodeSubscribe builds a subscribe command for channel.
func EncodeSubscribe(channel string) ([]byte, error) {
	return encode(Command{Action: ActionSubscribe, Channel: channel})
}

// EncodeUnsubscribe builds an unsubscribe command for channel.
func EncodeUnsubscribe(channel string) ([]byte, error) {
	return encode(Command{Action: ActionUnsubscribe, Channel: channel})
}

// EncodePing builds a ping command carrying timestamp unchanged.
func EncodePing(timestamp json.RawMessage) ([]byte, error) {
	return encode(Command{Action: ActionPing, Timestamp: timestamp})
}

// encode marshals cmd without HTML escaping so an echoed timestamp keeps
// its original bytes.
func encode(cmd Command) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cmd); err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Action, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func parseKind(s string) Kind {
	switch k := Kind(s); k {
	case KindConnected, KindSubscribed, KindUnsubscribed,
		KindHeartbeat, KindPong, KindData, KindError:
		return k
	}
	return KindUnknown
}

// present returns nil for absent or null JSON values.
func present(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}
