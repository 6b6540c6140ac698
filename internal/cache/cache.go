package cache

import (
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rickgao/stockfeed/internal/model"
)

// stockState is the output of one completed portfolio refresh.
type stockState struct {
	stocks    map[string]model.StockSnapshot
	updatedAt time.Time
}

// Cache owns the ticker->currency map and the symbol->snapshot map.
type Cache struct {
	instruments atomic.Pointer[map[string]string]
	state       atomic.Pointer[stockState]
	now         func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the wall clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	instruments := make(map[string]string)
	c.instruments.Store(&instruments)
	c.state.Store(&stockState{stocks: make(map[string]model.StockSnapshot)})

	return c
}

// ReplaceInstruments rebuilds the ticker->currency map from scratch.
func (c *Cache) ReplaceInstruments(instruments []model.Instrument) {
	next := make(map[string]string, len(instruments))
	for _, inst := range instruments {
		next[inst.Ticker] = inst.CurrencyCode
	}
	c.instruments.Store(&next)
}

// ReplacePortfolio builds a new snapshot map from positions and swaps it in.
// It returns the written snapshots sorted by symbol; publishing them is the
// caller's job. When two tickers share a display symbol the later position wins.
func (c *Cache) ReplacePortfolio(positions []model.Position) []model.StockSnapshot {
	currencies := *c.instruments.Load()
	ts := c.now()

	next := make(map[string]model.StockSnapshot, len(positions))
	for _, p := range positions {
		symbol := model.DeriveSymbol(p.Ticker)

		currency, ok := currencies[p.Ticker]
		if !ok || currency == "" {
			currency = model.UnknownCurrency
		}

		next[symbol] = model.StockSnapshot{
			Symbol:    symbol,
			Price:     p.CurrentPrice,
			Currency:  currency,
			UpdatedAt: ts,
		}
	}

	c.state.Store(&stockState{stocks: next, updatedAt: ts})

	written := make([]model.StockSnapshot, 0, len(next))
	for _, symbol := range slices.Sorted(maps.Keys(next)) {
		written = append(written, next[symbol])
	}
	return written
}

// Snapshot returns a copy of the current symbol->snapshot map.
func (c *Cache) Snapshot() map[string]model.StockSnapshot {
	return maps.Clone(c.state.Load().stocks)
}

// Get returns the snapshot for one symbol.
func (c *Cache) Get(symbol string) (model.StockSnapshot, bool) {
	s, ok := c.state.Load().stocks[symbol]
	return s, ok
}

// Has reports whether symbol is currently cached.
func (c *Cache) Has(symbol string) bool {
	_, ok := c.state.Load().stocks[symbol]
	return ok
}

// Symbols returns the cached display symbols in sorted order.
func (c *Cache) Symbols() []string {
	return slices.Sorted(maps.Keys(c.state.Load().stocks))
}

// StockCount returns the number of cached symbols.
func (c *Cache) StockCount() int {
	return len(c.state.Load().stocks)
}

// InstrumentCount returns the number of known instruments.
func (c *Cache) InstrumentCount() int {
	return len(*c.instruments.Load())
}

// LastUpdate returns when the current snapshot map was written, or the zero
// time if no portfolio refresh has completed yet.
func (c *Cache) LastUpdate() time.Time {
	return c.state.Load().updatedAt
}
