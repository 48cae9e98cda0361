package connection

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a message from Connection Manager to Message Router.
type RawMessage struct {
	Data       []byte    // Raw frame bytes
	SessionID  uuid.UUID // Connection generation the frame arrived on
	ReceivedAt time.Time // Local timestamp when the client read the frame
}

// MessageHandler receives inbound frames in delivery order.
type MessageHandler interface {
	HandleMessage(msg RawMessage)
}

// MessageHandlerFunc is a function adapter for MessageHandler.
type MessageHandlerFunc func(RawMessage)

func (f MessageHandlerFunc) HandleMessage(msg RawMessage) {
	f(msg)
}

// CommandMessage is the outbound command envelope understood by the
// reference bridge ("start", "stop", "reset").
type CommandMessage struct {
	Command string `json:"command"`
}

// Command builds a command envelope.
func Command(name string) CommandMessage {
	return CommandMessage{Command: name}
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., ws://localhost:8081)
	Header           http.Header   // Extra handshake headers
	HandshakeTimeout time.Duration // Dial handshake deadline
	PingInterval     time.Duration // Keepalive ping period (0 disables the heartbeat)
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     15 * time.Second,
		PingTimeout:      45 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL               string        // Default bridge URL used when Connect is given none
	Client            ClientConfig  // Per-connection transport settings (URL is filled in per dial)
	ReconnectDelay    time.Duration // Delay before a reconnect attempt
	ReconnectBackoff  bool          // Double the delay on every failed attempt
	ReconnectMaxDelay time.Duration // Cap for the doubled delay
}

// DefaultManagerConfig returns the reference dashboard behaviour.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		URL:               "ws://localhost:8081",
		Client:            DefaultClientConfig(),
		ReconnectDelay:    3 * time.Second,
		ReconnectMaxDelay: 30 * time.Second,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State            string    `json:"state"`
	URL              string    `json:"url"`
	SessionID        uuid.UUID `json:"session_id"`
	Attempts         int64     `json:"attempts"`
	Reconnects       int64     `json:"reconnects"`
	ReconnectPending bool      `json:"reconnect_pending"`
	LastError        string    `json:"last_error,omitempty"`
}
