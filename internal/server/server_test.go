package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/rickgao/stockfeed/internal/model"
	"github.com/rickgao/stockfeed/internal/poller"
)

type fakeStocks struct {
	stocks      map[string]model.StockSnapshot
	instruments int
	lastUpdate  time.Time
}

func (f *fakeStocks) Snapshot() map[string]model.StockSnapshot { return f.stocks }
func (f *fakeStocks) StockCount() int                           { return len(f.stocks) }
func (f *fakeStocks) InstrumentCount() int                      { return f.instruments }
func (f *fakeStocks) LastUpdate() time.Time                     { return f.lastUpdate }

type fakeStatus struct {
	state    poller.State
	interval time.Duration
}

func (f fakeStatus) State() poller.State     { return f.state }
func (f fakeStatus) Interval() time.Duration { return f.interval }

type fakeStream struct {
	served atomic.Int32
	closed atomic.Int32
}

func (f *fakeStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.served.Add(1)
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func (f *fakeStream) CloseAll(time.Duration) { f.closed.Add(1) }

func testServer(t *testing.T, cfg Config, stocks *fakeStocks, opts ...Option) (*Server, *fakeStream) {
	t.Helper()
	if stocks == nil {
		stocks = &fakeStocks{}
	}
	stream := &fakeStream{}
	status := fakeStatus{state: poller.StateRunning, interval: 10 * time.Second}

	s, err := New(cfg, stocks, status, stream, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, stream
}

func get(t *testing.T, h http.Handler, path string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %q", rec.Body.String())
	}
	return body
}

func TestServer_Health(t *testing.T) {
	stocks := &fakeStocks{
		stocks: map[string]model.StockSnapshot{
			"AAPL": {Symbol: "AAPL", Price: decimal.NewFromInt(1), Currency: "USD"},
		},
		instruments: 42,
	}
	s, _ := testServer(t, DefaultConfig(), stocks)

	rec := get(t, s.Handler(), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decode(t, rec)
	if body["message"] != "stockfeed is running" {
		t.Errorf("message = %v", body["message"])
	}
	if body["stocksCount"] != float64(1) || body["instrumentsCount"] != float64(42) {
		t.Errorf("counts = %v/%v, want 1/42", body["stocksCount"], body["instrumentsCount"])
	}
	if body["refreshIntervalMs"] != float64(10000) {
		t.Errorf("refreshIntervalMs = %v, want 10000", body["refreshIntervalMs"])
	}
	if body["state"] != "running" || body["streamMode"] != "interactive" {
		t.Errorf("state/mode = %v/%v", body["state"], body["streamMode"])
	}
	if v, ok := body["lastUpdate"]; !ok || v != nil {
		t.Errorf("lastUpdate = %v, want null before first refresh", v)
	}

	stocks.lastUpdate = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	body = decode(t, get(t, s.Handler(), "/"))
	if body["lastUpdate"] != "2024-03-01T12:00:00Z" {
		t.Errorf("lastUpdate = %v, want 2024-03-01T12:00:00Z", body["lastUpdate"])
	}
}

func TestServer_Stocks(t *testing.T) {
	updated := time.UnixMilli(1_700_000_000_000)
	stocks := &fakeStocks{stocks: map[string]model.StockSnapshot{
		"AAPL": {Symbol: "AAPL", Price: decimal.RequireFromString("150.25"), Currency: "USD", UpdatedAt: updated},
	}}
	s, _ := testServer(t, DefaultConfig(), stocks)

	for _, path := range []string{"/stocks", "/prices"} {
		t.Run(path, func(t *testing.T) {
			rec := get(t, s.Handler(), path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			want := `{"stocks":{"AAPL":{"price":150.25,"currency":"USD","updated":1700000000000}}}`
			if got := strings.TrimSpace(rec.Body.String()); got != want {
				t.Errorf("body = %s, want %s", got, want)
			}
		})
	}
}

func TestServer_StocksEmpty(t *testing.T) {
	s, _ := testServer(t, DefaultConfig(), &fakeStocks{stocks: map[string]model.StockSnapshot{}})

	rec := get(t, s.Handler(), "/stocks")
	if got := strings.TrimSpace(rec.Body.String()); got != `{"stocks":{}}` {
		t.Errorf("body = %s, want {\"stocks\":{}}", got)
	}
}

func TestServer_StreamRoute(t *testing.T) {
	s, stream := testServer(t, DefaultConfig(), nil)

	get(t, s.Handler(), "/ws")
	if stream.served.Load() != 1 {
		t.Errorf("stream handler served %d requests, want 1", stream.served.Load())
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "stockfeed_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s, _ := testServer(t, DefaultConfig(), nil, WithGatherer(reg))

	rec := get(t, s.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "stockfeed_test_total 1") {
		t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
	}
}

func TestServer_CORS(t *testing.T) {
	t.Run("any origin", func(t *testing.T) {
		s, _ := testServer(t, DefaultConfig(), nil)
		rec := get(t, s.Handler(), "/", func(r *http.Request) {
			r.Header.Set("Origin", "https://client.test")
		})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
		}
	})

	t.Run("listed origin", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CORSOrigins = []string{"https://app.example"}
		s, _ := testServer(t, cfg, nil)

		rec := get(t, s.Handler(), "/", func(r *http.Request) {
			r.Header.Set("Origin", "https://app.example")
		})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
			t.Errorf("Access-Control-Allow-Origin = %q, want https://app.example", got)
		}

		rec = get(t, s.Handler(), "/", func(r *http.Request) {
			r.Header.Set("Origin", "https://other.example")
		})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q for unlisted origin, want empty", got)
		}
	})
}

func TestServer_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	s, _ := testServer(t, cfg, nil)

	from := func(ip string) func(*http.Request) {
		return func(r *http.Request) { r.RemoteAddr = ip + ":40000" }
	}

	for i := 0; i < cfg.RateRequests; i++ {
		if rec := get(t, s.Handler(), "/", from("198.51.100.7")); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := get(t, s.Handler(), "/stocks", from("198.51.100.7"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if body := decode(t, rec); body["error"] == nil {
		t.Errorf("429 body = %v, want error field", body)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// Other clients have their own budget.
	if rec := get(t, s.Handler(), "/", from("198.51.100.8")); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestServer_UnknownPresetWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := DefaultConfig()
	cfg.ProxyPreset = "heroku"
	testServer(t, cfg, nil, WithLogger(logger))

	if !strings.Contains(buf.String(), "unknown proxy preset") {
		t.Errorf("expected warning, got %q", buf.String())
	}
}

func TestServer_InvalidRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateRequests = 0
	if _, err := New(cfg, &fakeStocks{}, fakeStatus{}, &fakeStream{}); err == nil {
		t.Error("New() expected error for zero rate limit")
	}
}

func TestServer_Serve(t *testing.T) {
	s, stream := testServer(t, DefaultConfig(), nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if stream.closed.Load() != 1 {
		t.Errorf("CloseAll called %d times, want 1", stream.closed.Load())
	}
}
