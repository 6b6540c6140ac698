package protocol

import (
	"encoding/json"
	"time"

	"github.com/rickgao/stockfeed/internal/model"
)

// Event names sent to clients.
const (
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventPong         = "pong"
	EventError        = "error"
	EventUpdate       = "update"
)

// SymbolsEvent acknowledges a subscribe or unsubscribe.
type SymbolsEvent struct {
	Event   string   `json:"event"`
	Symbols []string `json:"symbols"`
}

// PongEvent answers a ping with the server time in Unix milliseconds.
type PongEvent struct {
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorEvent reports a protocol error. The connection stays open.
type ErrorEvent struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UpdateEvent carries one symbol's new snapshot.
type UpdateEvent struct {
	Event  string              `json:"event"`
	Symbol string              `json:"symbol"`
	Data   model.StockSnapshot `json:"data"`
}

// StocksMessage is the full snapshot, used by GET /stocks and broadcast mode.
type StocksMessage struct {
	Stocks map[string]model.StockSnapshot `json:"stocks"`
}

// Subscribed builds the acknowledgement for accepted symbols.
func Subscribed(symbols []string) []byte {
	return mustMarshal(SymbolsEvent{Event: EventSubscribed, Symbols: nonNil(symbols)})
}

// Unsubscribed builds the acknowledgement for removed symbols.
func Unsubscribed(symbols []string) []byte {
	return mustMarshal(SymbolsEvent{Event: EventUnsubscribed, Symbols: nonNil(symbols)})
}

// Pong builds a pong stamped with now.
func Pong(now time.Time) []byte {
	return mustMarshal(PongEvent{Event: EventPong, Timestamp: now.UnixMilli()})
}

// Error builds an error event from a protocol error.
func Error(err *ProtocolError) []byte {
	return mustMarshal(ErrorEvent{Event: EventError, Code: err.Code, Message: err.Message})
}

// Update builds an update event for one snapshot.
func Update(s model.StockSnapshot) []byte {
	return mustMarshal(UpdateEvent{Event: EventUpdate, Symbol: s.Symbol, Data: s})
}

// Stocks builds the full-snapshot message from a list of snapshots.
func Stocks(snapshots []model.StockSnapshot) []byte {
	stocks := make(map[string]model.StockSnapshot, len(snapshots))
	for _, s := range snapshots {
		stocks[s.Symbol] = s
	}
	return mustMarshal(StocksMessage{Stocks: stocks})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// mustMarshal encodes event types whose fields cannot fail to marshal.
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic("protocol: marshal " + err.Error())
	}
	return data
}
