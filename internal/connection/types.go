package connection

import (
	"errors"
	"time"

	"github.com/rickgao/stockfeed/internal/broadcast"
	"github.com/rickgao/stockfeed/internal/model"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Close reasons sent to clients.
const (
	ReasonBroadcastOnly = "client messages are not accepted in broadcast mode"
	ReasonShutdown      = "server shutting down"
)

// SymbolSource is the read side of the stock cache.
type SymbolSource interface {
	Has(symbol string) bool
	Get(symbol string) (model.StockSnapshot, bool)
	Snapshot() map[string]model.StockSnapshot
}

// Registry tracks which connections want which topics.
type Registry interface {
	Mode() broadcast.Mode
	Join(s broadcast.Subscriber)
	Subscribe(s broadcast.Subscriber, topic string) bool
	Unsubscribe(s broadcast.Subscriber, topic string) bool
	Leave(s broadcast.Subscriber)
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// HandlerConfig configures server-side connections.
type HandlerConfig struct {
	WriteTimeout   time.Duration // Write deadline for each frame
	PingInterval   time.Duration // How often to ping the client
	PongWait       time.Duration // Max time without a pong before the read fails
	SendBuffer     int           // Per-connection outbound queue length
	MaxMessageSize int64         // Read limit for client frames
}

// DefaultHandlerConfig returns sensible defaults.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		SendBuffer:     64,
		MaxMessageSize: 4096,
	}
}

func (c HandlerConfig) withDefaults() HandlerConfig {
	d := DefaultHandlerConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

// ClientConfig configures a stream client.
type ClientConfig struct {
	URL          string        // Stream URL (e.g., ws://localhost:3000/ws)
	PingTimeout  time.Duration // Max time without a pong before considering connection stale
	PingInterval time.Duration // How often to ping the server
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}
