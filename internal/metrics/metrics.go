package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stockfeed"

// Refresh outcomes.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds all service collectors.
type Metrics struct {
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	lastRefresh     prometheus.Gauge
	cachedSymbols   prometheus.Gauge
	instruments     prometheus.Gauge
	connections     prometheus.Gauge
	published       *prometheus.CounterVec
	protocolErrors  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Portfolio refresh cycles by result.",
		}, []string{"result"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of portfolio refresh cycles including the upstream call.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful portfolio refresh.",
		}),
		cachedSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_symbols",
			Help:      "Display symbols currently in the cache.",
		}),
		instruments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instruments",
			Help:      "Instruments known from the last metadata load.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connections",
			Help:      "Open streaming connections.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_messages_total",
			Help:      "Messages delivered to streaming connections by topic kind.",
		}, []string{"kind"}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Malformed or disallowed client messages by error code.",
		}, []string{"code"}),
	}

	reg.MustRegister(
		m.refreshTotal,
		m.refreshDuration,
		m.lastRefresh,
		m.cachedSymbols,
		m.instruments,
		m.connections,
		m.published,
		m.protocolErrors,
	)

	return m
}

// ObserveRefresh records one refresh cycle.
func (m *Metrics) ObserveRefresh(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(d.Seconds())
	if result == ResultSuccess {
		m.lastRefresh.SetToCurrentTime()
	}
}

// SetCacheSize records the cache counts after a write.
func (m *Metrics) SetCacheSize(symbols, instruments int) {
	if m == nil {
		return
	}
	m.cachedSymbols.Set(float64(symbols))
	m.instruments.Set(float64(instruments))
}

// ConnectionOpened increments the open connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionClosed decrements the open connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// Published adds n delivered messages of the given kind.
func (m *Metrics) Published(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.published.WithLabelValues(kind).Add(float64(n))
}

// ProtocolError counts one rejected client message.
func (m *Metrics) ProtocolError(code string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(code).Inc()
}
