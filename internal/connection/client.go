package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a single established transport connection.
type Conn interface {
	// ReadMessage blocks until the next message arrives or the connection fails.
	ReadMessage() ([]byte, error)

	// WriteMessage writes one text message.
	WriteMessage(data []byte) error

	// SetReadDeadline bounds the next ReadMessage call.
	SetReadDeadline(t time.Time) error

	// Close sends a close frame with code and reason, then closes the connection.
	Close(code int, reason string) error
}

// Dialer establishes transport connections.
type Dialer interface {
	Dial(ctx context.Context, target string) (Conn, error)
}

// WSDialer dials WebSocket connections with gorilla/websocket.
type WSDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// NewDialer creates a WSDialer.
func NewDialer(handshakeTimeout, writeTimeout time.Duration) *WSDialer {
	return &WSDialer{
		HandshakeTimeout: handshakeTimeout,
		WriteTimeout:     writeTimeout,
	}
}

// Dial establishes a WebSocket connection to target.
func (d *WSDialer) Dial(ctx context.Context, target string) (Conn, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &wsConn{
		conn:         conn,
		writeTimeout: d.WriteTimeout,
	}, nil
}

// wsConn implements Conn over *websocket.Conn.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	// Write serialization
	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrAlreadyClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close is idempotent; only the first call sends a close frame.
func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// Best effort; the peer may already be gone.
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

// BuildTarget returns endpoint with credential added as the token query
// parameter. An empty credential leaves endpoint unchanged.
func BuildTarget(endpoint, credential string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("endpoint scheme must be ws or wss, got %q", u.Scheme)
	}
	if credential == "" {
		return u.String(), nil
	}

	q := u.Query()
	q.Set(CredentialParam, credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// closeInfoFromError extracts the close code and reason from a read error.
func closeInfoFromError(err error) closeInfo {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return closeInfo{Code: ce.Code, Reason: ce.Text}
	}
	return closeInfo{Code: websocket.CloseAbnormalClosure, Reason: err.Error()}
}
