package connection

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/stockfeed/internal/broadcast"
	"github.com/rickgao/stockfeed/internal/metrics"
	"github.com/rickgao/stockfeed/internal/model"
	"github.com/rickgao/stockfeed/internal/protocol"
)

// Handler accepts stream connections.
type Handler struct {
	cfg      HandlerConfig
	source   SymbolSource
	registry Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*Conn
	wg    sync.WaitGroup
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics records connection and protocol error counts.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithClock overrides the pong timestamp source.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.now = now
	}
}

// WithAllowedOrigins restricts browser origins allowed to upgrade. An empty
// list or "*" allows any origin.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handler) {
		if len(origins) == 0 || slices.Contains(origins, "*") {
			h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.ContainsFunc(origins, func(o string) bool {
				return strings.EqualFold(o, origin)
			})
		}
	}
}

// NewHandler creates a stream handler.
func NewHandler(cfg HandlerConfig, source SymbolSource, registry Registry, opts ...HandlerOption) *Handler {
	cfg = cfg.withDefaults()
	h := &Handler{
		cfg:      cfg,
		source:   source,
		registry: registry,
		logger:   slog.Default(),
		now:      time.Now,
		conns:    make(map[string]*Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := newConn(ws, h.cfg, h.logger)
	h.register(c)
	defer h.unregister(c)

	mode := h.registry.Mode()
	h.registry.Join(c)
	c.logger.Info("stream client connected", "mode", mode, "remote", r.RemoteAddr)

	if mode == broadcast.ModeBroadcast {
		c.Send(protocol.Stocks(sortedSnapshots(h.source.Snapshot())))
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump(func(data []byte) {
		if mode == broadcast.ModeBroadcast {
			h.metrics.ProtocolError(protocol.CodeNotAllowed)
			c.logger.Debug("closing client that sent data in broadcast mode")
			c.CloseWith(websocket.ClosePolicyViolation, ReasonBroadcastOnly)
			return
		}
		h.dispatch(c, data)
	})

	c.CloseWith(websocket.CloseNormalClosure, "")
	<-writerDone
}

// dispatch handles one interactive-mode client message.
func (h *Handler) dispatch(c *Conn, data []byte) {
	req, err := protocol.Parse(data)
	if err != nil {
		var perr *protocol.ProtocolError
		if errors.As(err, &perr) {
			h.metrics.ProtocolError(perr.Code)
			c.Send(protocol.Error(perr))
		}
		return
	}

	switch r := req.(type) {
	case protocol.Ping:
		c.Send(protocol.Pong(h.now()))

	case protocol.Subscribe:
		accepted := make([]string, 0, len(r.Symbols))
		for _, sym := range r.Symbols {
			if !h.source.Has(sym) {
				continue
			}
			h.registry.Subscribe(c, sym)
			accepted = append(accepted, sym)
		}
		c.Send(protocol.Subscribed(accepted))

		for _, sym := range accepted {
			if snap, ok := h.source.Get(sym); ok {
				c.Send(protocol.Update(snap))
			}
		}

	case protocol.Unsubscribe:
		removed := make([]string, 0, len(r.Symbols))
		for _, sym := range r.Symbols {
			if h.registry.Unsubscribe(c, sym) {
				removed = append(removed, sym)
			}
		}
		c.Send(protocol.Unsubscribed(removed))
	}
}

// CloseAll sends every open connection a going-away close frame and waits
// for their handlers to return or for timeout to pass.
func (h *Handler) CloseAll(timeout time.Duration) {
	h.mu.Lock()
	for _, c := range h.conns {
		c.CloseWith(websocket.CloseGoingAway, ReasonShutdown)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		h.logger.Warn("stream connections did not close in time")
	}
}

// ConnectionCount returns the number of open connections.
func (h *Handler) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Handler) register(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	h.wg.Add(1)
	h.mu.Unlock()
	h.metrics.ConnectionOpened()
}

func (h *Handler) unregister(c *Conn) {
	h.registry.Leave(c)

	h.mu.Lock()
	delete(h.conns, c.ID())
	h.mu.Unlock()

	h.metrics.ConnectionClosed()
	c.logger.Info("stream client disconnected")
	h.wg.Done()
}

func sortedSnapshots(m map[string]model.StockSnapshot) []model.StockSnapshot {
	out := make([]model.StockSnapshot, 0, len(m))
	for _, sym := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[sym])
	}
	return out
}
