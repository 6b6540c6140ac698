package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/stockfeed/internal/model"
	"github.com/rickgao/stockfeed/internal/poller"
	"github.com/rickgao/stockfeed/internal/protocol"
	"github.com/rickgao/stockfeed/internal/version"
)

// StockReader is the read side of the stock cache.
type StockReader interface {
	Snapshot() map[string]model.StockSnapshot
	StockCount() int
	InstrumentCount() int
	LastUpdate() time.Time
}

// Status reports the refresh scheduler state.
type Status interface {
	State() poller.State
	Interval() time.Duration
}

// StreamHandler serves GET /ws.
type StreamHandler interface {
	http.Handler
	CloseAll(timeout time.Duration)
}

// Config holds server configuration.
type Config struct {
	Addr            string
	ProxyPreset     string
	CORSOrigins     []string
	RateRequests    int
	RateWindow      time.Duration
	StreamMode      string
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            "0.0.0.0:3000",
		ProxyPreset:     "direct",
		CORSOrigins:     []string{"*"},
		RateRequests:    10,
		RateWindow:      10 * time.Second,
		StreamMode:      "interactive",
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server is the HTTP front end.
type Server struct {
	cfg      Config
	stocks   StockReader
	status   Status
	stream   StreamHandler
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	engine  *gin.Engine
	limiter *rateLimiter
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer sets the registry served on /metrics. Defaults to
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// New builds the router. An unknown proxy preset falls back to direct with a
// warning.
func New(cfg Config, stocks StockReader, status Status, stream StreamHandler, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		stocks:   stocks,
		status:   status,
		stream:   stream,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if s.cfg.RateRequests < 1 || s.cfg.RateWindow <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d per %s", s.cfg.RateRequests, s.cfg.RateWindow)
	}
	if s.cfg.ShutdownTimeout <= 0 {
		s.cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	s.limiter = newRateLimiter(s.cfg.RateRequests, s.cfg.RateWindow)

	engine, err := s.buildRouter()
	if err != nil {
		return nil, err
	}
	s.engine = engine

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	preset, ok := ResolvePreset(s.cfg.ProxyPreset)
	if !ok {
		s.logger.Warn("unknown proxy preset, using direct",
			"preset", s.cfg.ProxyPreset,
			"supported", PresetNames(),
		)
	}
	if err := preset.apply(router); err != nil {
		return nil, fmt.Errorf("apply proxy preset %s: %w", preset.Name, err)
	}

	router.Use(
		gin.Recovery(),
		requestLogger(s.logger),
		corsMiddleware(s.cfg.CORSOrigins),
		s.limiter.middleware(),
	)

	router.GET("/", s.handleHealth)
	router.GET("/stocks", s.handleStocks)
	router.GET("/prices", s.handleStocks)
	router.GET("/ws", gin.WrapH(s.stream))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	return router, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	var lastUpdate any
	if t := s.stocks.LastUpdate(); !t.IsZero() {
		lastUpdate = t.UTC().Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           "stockfeed is running",
		"version":           version.Version,
		"stocksCount":       s.stocks.StockCount(),
		"instrumentsCount":  s.stocks.InstrumentCount(),
		"refreshIntervalMs": s.status.Interval().Milliseconds(),
		"streamMode":        s.cfg.StreamMode,
		"state":             s.status.State().String(),
		"lastUpdate":        lastUpdate,
	})
}

func (s *Server) handleStocks(c *gin.Context) {
	c.JSON(http.StatusOK, protocol.StocksMessage{Stocks: s.stocks.Snapshot()})
}

// Run serves on the configured address until ctx is cancelled, then closes
// stream connections and shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		// Hijacked stream connections are not tracked by Shutdown.
		s.stream.CloseAll(s.cfg.ShutdownTimeout)

		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		<-errCh
		s.logger.Info("http server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}
