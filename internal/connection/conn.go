package connection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is one accepted stream connection.
type Conn struct {
	id     string
	ws     *websocket.Conn
	cfg    HandlerConfig
	logger *slog.Logger

	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newConn(ws *websocket.Conn, cfg HandlerConfig, logger *slog.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:     id,
		ws:     ws,
		cfg:    cfg,
		logger: logger.With("conn_id", id),
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

// ID returns the connection ID.
func (c *Conn) ID() string {
	return c.id
}

// Send queues msg for the write pump. It never blocks: a message is dropped
// when the queue is full or the connection is closing.
func (c *Conn) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("send buffer full, dropping message")
		return false
	}
}

// CloseWith asks the write pump to send a close frame and hang up. Only the
// first call has any effect.
func (c *Conn) CloseWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// writePump is the only writer of data frames and pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("write failed", "error", err)
				c.CloseWith(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				c.CloseWith(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-c.done:
			if c.closeCode != websocket.CloseAbnormalClosure {
				c.ws.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(c.closeCode, c.closeReason),
					time.Now().Add(time.Second),
				)
			}
			return
		}
	}
}

// readPump delivers inbound frames to fn until the connection fails.
func (c *Conn) readPump(fn func(data []byte)) {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.logger.Debug("read failed", "error", err)
			}
			return
		}

		select {
		case <-c.done:
			// Closing; ignore whatever is still arriving.
			continue
		default:
		}

		fn(data)
	}
}
