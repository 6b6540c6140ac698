package connection

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rickgao/stockfeed/internal/broadcast"
	"github.com/rickgao/stockfeed/internal/cache"
	"github.com/rickgao/stockfeed/internal/model"
)

var _ SymbolSource = (*cache.Cache)(nil)
var _ Registry = (*broadcast.Broadcaster)(nil)

type streamFixture struct {
	cache   *cache.Cache
	bus     *broadcast.Broadcaster
	handler *Handler
	server  *httptest.Server
}

func newStreamFixture(t *testing.T, mode broadcast.Mode, opts ...HandlerOption) *streamFixture {
	t.Helper()

	c := cache.New()
	c.ReplaceInstruments([]model.Instrument{
		{Ticker: "AAPL_US_EQ", CurrencyCode: "USD"},
		{Ticker: "TSLA_US_EQ", CurrencyCode: "USD"},
	})
	c.ReplacePortfolio([]model.Position{
		{Ticker: "AAPL_US_EQ", CurrentPrice: decimal.RequireFromString("150.25")},
		{Ticker: "TSLA_US_EQ", CurrentPrice: decimal.RequireFromString("200")},
	})

	b := broadcast.New(mode)
	h := NewHandler(HandlerConfig{PingInterval: time.Second, PongWait: 5 * time.Second}, c, b, opts...)
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	return &streamFixture{cache: c, bus: b, handler: h, server: server}
}

func (f *streamFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(f.server), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg string) {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func readEvent(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var event map[string]any
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("event is not JSON: %q", data)
	}
	return event
}

func symbolsOf(t *testing.T, event map[string]any) []string {
	t.Helper()
	raw, ok := event["symbols"].([]any)
	if !ok {
		t.Fatalf("event has no symbols array: %v", event)
	}
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = s.(string)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandler_SubscribeFiltersUnknownSymbols(t *testing.T) {
	f := newStreamFixture(t, broadcast.ModeInteractive)
	ws := f.dial(t)

	send(t, ws, `{"action":"subscribe","symbols":["AAPL","NOPE"]}`)

	ack := readEvent(t, ws)
	if ack["event"] != "subscribed" {
		t.Fatalf("event = %v, want subscribed", ack["event"])
	}
	if got := symbolsOf(t, ack); len(got) != 1 || got[0] != "AAPL" {
		t.Errorf("subscribed symbols = %v, want [AAPL]", got)
	}

	update := readEvent(t, ws)
	if update["event"] != "update" || update["symbol"] != "AAPL" {
		t.Fatalf("initial update = %v", update)
	}
	data := update["data"].(map[string]any)
	if data["price"] != 150.25 || data["currency"] != "USD" {
		t.Errorf("update data = %v, want 150.25 USD", data)
	}

	if f.bus.SubscriberCount("NOPE") != 0 {
		t.Error("unknown symbol should not get a topic")
	}
}

func TestHandler_ReceivesPublishedUpdates(t *testing.T) {
	f := newStreamFixture(t, broadcast.ModeInteractive)
	ws := f.dial(t)

	send(t, ws, `{"action":"subscribe","symbols":["TSLA"]}`)
	readEvent(t, ws) // subscribed
	readEvent(t, ws) // initial update

	written := f.cache.ReplacePortfolio([]model.Position{
		{Ticker: "AAPL_US_EQ", CurrentPrice: decimal.NewFromInt(151)},
		{Ticker: "TSLA_US_EQ", CurrentPrice: decimal.NewFromInt(201)},
	})
	if n := f.bus.PublishCycle(written); n != 1 {
		t.Errorf("PublishCycle delivered %d, want 1", n)
	}

	update := readEvent(t, ws)
	if update["symbol"] != "TSLA" {
		t.Fatalf("update symbol = %v, want TSLA", update["symbol"])
	}
	if price := update["data"].(map[string]any)["price"]; price != float64(201) {
		t.Errorf("price = %v, want 201", price)
	}
}

func TestHandler_Unsubscribe(t *testing.T) {
	f := newStreamFixture(t, broadcast.ModeInteractive)
	ws := f.dial(t)

	send(t, ws, `{"action":"subscribe","symbols":["AAPL"]}`)
	readEvent(t, ws)
	readEvent(t, ws)

	send(t, ws, `{"action":"unsubscribe","symbols":["AAPL","TSLA"]}`)
	ack := readEvent(t, ws)
	if ack["event"] != "unsubscribed" {
		t.Fatalf("event = %v, want unsubscribed", ack["event"])
	}
	if got := symbolsOf(t, ack); len(got) != 1 || got[0] != "AAPL" {
		t.Errorf("unsubscribed symbols = %v, want [AAPL]", got)
	}
	if f.bus.SubscriberCount("AAPL") != 0 {
		t.Error("AAPL topic should be empty")
	}
}

func TestHandler_Ping(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	f := newStreamFixture(t, broadcast.ModeInteractive, WithClock(func() time.Time { return now }))
	ws := f.dial(t)

	send(t, ws, `{"action":"ping"}`)
	pong := readEvent(t, ws)
	if pong["event"] != "pong" {
		t.Fatalf("event = %v, want pong", pong["event"])
	}
	if pong["timestamp"] != float64(1_700_000_000_000) {
		t.Errorf("timestamp = %v, want 1700000000000", pong["timestamp"])
	}
}

func TestHandler_ProtocolErrorsKeepConnectionOpen(t *testing.T) {
	tests := []struct {
		msg  string
		code string
	}{
		{`not json`, "invalid_json"},
		{`{"symbols":["AAPL"]}`, "missing_action"},
		{`{"action":"subscribe","symbols":[]}`, "missing_symbols"},
		{`{"action":"dance"}`, "unknown_action"},
	}

	f := newStreamFixture(t, broadcast.ModeInteractive)
	ws := f.dial(t)

	for _, tt := range tests {
		send(t, ws, tt.msg)
		event := readEvent(t, ws)
		if event["event"] != "error" || event["code"] != tt.code {
			t.Errorf("%s: got %v, want error %s", tt.msg, event, tt.code)
		}
	}

	send(t, ws, `{"action":"ping"}`)
	if event := readEvent(t, ws); event["event"] != "pong" {
		t.Errorf("connection unusable after errors: %v", event)
	}
}

func TestHandler_BroadcastMode(t *testing.T) {
	f := newStreamFixture(t, broadcast.ModeBroadcast)
	ws := f.dial(t)

	initial := readEvent(t, ws)
	stocks, ok := initial["stocks"].(map[string]any)
	if !ok || len(stocks) != 2 {
		t.Fatalf("initial snapshot = %v, want 2 stocks", initial)
	}

	waitFor(t, func() bool { return f.bus.SubscriberCount(broadcast.SharedTopic) == 1 })

	written := f.cache.ReplacePortfolio([]model.Position{
		{Ticker: "AAPL_US_EQ", CurrentPrice: decimal.NewFromInt(1)},
	})
	f.bus.PublishCycle(written)

	cycle := readEvent(t, ws)
	stocks = cycle["stocks"].(map[string]any)
	if len(stocks) != 1 || stocks["AAPL"] == nil {
		t.Errorf("cycle stocks = %v, want only AAPL", stocks)
	}
}

func TestHandler_BroadcastModeRejectsClientMessages(t *testing.T) {
	f := newStreamFixture(t, broadcast.ModeBroadcast)
	ws := f.dial(t)
	readEvent(t, ws) // initial snapshot

	send(t, ws, `{"action":"ping"}`)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation {
		t.Errorf("close code = %d, want %d", closeErr.Code, websocket.ClosePolicyViolation)
	}
	if closeErr.Text != ReasonBroadcastOnly {
		t.Errorf("close reason = %q, want %q", closeErr.Text, ReasonBroadcastOnly)
	}
}

func TestHandler_DisconnectLeavesTopics(t *testing.T) {
	f := newStreamFixture(t, broadcast.ModeInteractive)
	ws := f.dial(t)

	send(t, ws, `{"action":"subscribe","symbols":["AAPL","TSLA"]}`)
	readEvent(t, ws)

	if f.bus.ConnectionCount() != 1 {
		t.Fatalf("ConnectionCount() = %d, want 1", f.bus.ConnectionCount())
	}

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()

	waitFor(t, func() bool { return f.handler.ConnectionCount() == 0 })

	if f.bus.ConnectionCount() != 0 {
		t.Errorf("broadcaster still holds %d connections", f.bus.ConnectionCount())
	}
	if f.bus.SubscriberCount("AAPL") != 0 || f.bus.SubscriberCount("TSLA") != 0 {
		t.Error("topics not cleaned up after disconnect")
	}
}

func TestHandler_CloseAll(t *testing.T) {
	f := newStreamFixture(t, broadcast.ModeInteractive)
	ws := f.dial(t)

	waitFor(t, func() bool { return f.handler.ConnectionCount() == 1 })

	go func() {
		// Keep reading so the close handshake completes.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	f.handler.CloseAll(2 * time.Second)

	if n := f.handler.ConnectionCount(); n != 0 {
		t.Errorf("ConnectionCount() = %d after CloseAll, want 0", n)
	}
}

func TestHandler_RejectsDisallowedOrigin(t *testing.T) {
	f := newStreamFixture(t, broadcast.ModeInteractive, WithAllowedOrigins([]string{"https://app.example"}))

	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(f.server), header)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Errorf("response = %v, want 403", resp)
	}

	header["Origin"] = []string{"https://app.example"}
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(f.server), header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	ws.Close()
}
