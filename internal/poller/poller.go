package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/stockfeed/internal/metrics"
	"github.com/rickgao/stockfeed/internal/model"
)

// ErrInstrumentsUnavailable means the startup metadata load failed.
var ErrInstrumentsUnavailable = errors.New("instrument metadata unavailable")

// Source is the upstream API.
type Source interface {
	GetInstruments(ctx context.Context) ([]model.Instrument, error)
	GetPortfolio(ctx context.Context) ([]model.Position, error)
}

// Store receives refresh results.
type Store interface {
	ReplaceInstruments(instruments []model.Instrument)
	ReplacePortfolio(positions []model.Position) []model.StockSnapshot
	StockCount() int
	InstrumentCount() int
}

// Publisher fans a refresh result out to subscribers.
type Publisher interface {
	PublishCycle(written []model.StockSnapshot) int
}

// State is the scheduler lifecycle state.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds scheduler configuration.
type Config struct {
	Interval    time.Duration // Requested refresh period (default: 10s)
	MinInterval time.Duration // Upstream rate limit floor (default: 5s)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    10 * time.Second,
		MinInterval: 5 * time.Second,
		Timeout:     10 * time.Second,
	}
}

// EffectiveInterval applies the floor to a configured interval. The bool
// reports whether the floor was used.
func EffectiveInterval(configured, floor time.Duration) (time.Duration, bool) {
	if configured < floor {
		return floor, true
	}
	return configured, false
}

// Poller drives the refresh cycle.
type Poller struct {
	cfg      Config
	interval time.Duration
	source   Source
	store    Store
	pub      Publisher
	logger   *slog.Logger
	metrics  *metrics.Metrics

	state atomic.Int32
	group singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. An interval below the floor is raised to the
// floor with a warning.
func New(cfg Config, source Source, store Store, pub Publisher, logger *slog.Logger, m *metrics.Metrics) *Poller {
	if logger == nil {
		logger = slog.Default()
	}

	interval, clamped := EffectiveInterval(cfg.Interval, cfg.MinInterval)
	if clamped {
		logger.Warn("refresh interval below upstream minimum, using minimum",
			"configured", cfg.Interval,
			"minimum", cfg.MinInterval,
		)
	}

	return &Poller{
		cfg:      cfg,
		interval: interval,
		source:   source,
		store:    store,
		pub:      pub,
		logger:   logger,
		metrics:  m,
	}
}

// Interval returns the effective refresh period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Start loads instrument metadata, performs the first portfolio refresh and
// begins the polling loop. A metadata failure moves the poller to StateFatal
// and is returned; the caller must not serve traffic.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	if err := p.loadInstruments(p.ctx); err != nil {
		p.state.Store(int32(StateFatal))
		p.cancel()
		return fmt.Errorf("%w: %w", ErrInstrumentsUnavailable, err)
	}

	// A failed first refresh is retried on the first tick.
	_ = p.Refresh(p.ctx)

	p.state.Store(int32(StateRunning))

	p.wg.Add(1)
	go p.run()

	p.logger.Info("poll scheduler started",
		"interval", p.interval,
		"stocks", p.store.StockCount(),
		"instruments", p.store.InstrumentCount(),
	)

	return nil
}

// Stop gracefully shuts down the poller. An in-flight fetch is abandoned and
// its result discarded.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poll scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			_ = p.Refresh(p.ctx)
		}
	}
}

// loadInstruments fetches instrument metadata once.
func (p *Poller) loadInstruments(ctx context.Context) error {
	p.logger.Debug("fetching instrument metadata")

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	instruments, err := p.source.GetInstruments(fetchCtx)
	if err != nil {
		p.logger.Error("failed to fetch instrument metadata", "error", err)
		return err
	}

	p.store.ReplaceInstruments(instruments)
	p.metrics.SetCacheSize(p.store.StockCount(), p.store.InstrumentCount())
	p.logger.Info("instrument metadata loaded", "instruments", len(instruments))
	return nil
}

// Refresh runs one refresh cycle. A call made while another cycle is in
// flight waits for that cycle and shares its result instead of fetching again.
// Failures are logged and leave the cache untouched.
func (p *Poller) Refresh(ctx context.Context) error {
	_, err, _ := p.group.Do("portfolio", func() (any, error) {
		return nil, p.refresh(ctx)
	})
	return err
}

func (p *Poller) refresh(ctx context.Context) error {
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	positions, err := p.source.GetPortfolio(fetchCtx)
	if err != nil {
		p.metrics.ObserveRefresh(metrics.ResultError, time.Since(start))
		p.logger.Error("failed to refresh portfolio", "error", err)
		return err
	}

	// Shutdown began while the fetch was outstanding.
	if err := ctx.Err(); err != nil {
		p.logger.Debug("discarding portfolio fetched after shutdown")
		return err
	}

	written := p.store.ReplacePortfolio(positions)
	delivered := p.pub.PublishCycle(written)

	p.metrics.ObserveRefresh(metrics.ResultSuccess, time.Since(start))
	p.metrics.SetCacheSize(len(written), p.store.InstrumentCount())

	p.logger.Debug("portfolio refreshed",
		"stocks", len(written),
		"delivered", delivered,
		"duration", time.Since(start),
	)

	return nil
}
