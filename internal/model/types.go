package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownCurrency is reported for positions whose ticker has no instrument metadata.
const UnknownCurrency = "UNKNOWN"

// -----------------------------------------------------------------------------
// Reference Data
// -----------------------------------------------------------------------------

// Instrument is tradable instrument metadata. Only Ticker and CurrencyCode
// feed the cache; the rest is carried for diagnostics.
type Instrument struct {
	Ticker            string // Raw ticker (e.g., "AAPL_US_EQ")
	CurrencyCode      string // ISO-ish code, "GBX" for pence-quoted LSE lines
	Type              string // "STOCK", "ETF", ...
	ISIN              string
	Name              string
	ShortName         string
	WorkingScheduleID int64
	MaxOpenQuantity   decimal.Decimal
	AddedOn           time.Time
}

// -----------------------------------------------------------------------------
// Portfolio
// -----------------------------------------------------------------------------

// Position is one open portfolio position with its live price.
type Position struct {
	Ticker          string          // Raw ticker
	CurrentPrice    decimal.Decimal // Live price in instrument currency
	Quantity        decimal.Decimal
	AveragePrice    decimal.Decimal
	PPL             decimal.Decimal  // Unrealised profit/loss
	FxPPL           *decimal.Decimal // Nil when no FX component
	InitialFillDate time.Time
}

// StockSnapshot is the cached price state of one display symbol.
type StockSnapshot struct {
	Symbol    string
	Price     decimal.Decimal
	Currency  string
	UpdatedAt time.Time
}

type stockSnapshotJSON struct {
	Price    json.Number `json:"price"`
	Currency string      `json:"currency"`
	Updated  int64       `json:"updated"`
}

// MarshalJSON encodes the snapshot as {"price","currency","updated"}. The
// symbol is carried by the enclosing map key or event envelope.
func (s StockSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(stockSnapshotJSON{
		Price:    json.Number(s.Price.String()),
		Currency: s.Currency,
		Updated:  s.UpdatedAt.UnixMilli(),
	})
}

// UnmarshalJSON is the inverse of MarshalJSON. Symbol is left empty.
func (s *StockSnapshot) UnmarshalJSON(data []byte) error {
	var raw stockSnapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	price, err := decimal.NewFromString(raw.Price.String())
	if err != nil {
		return err
	}
	s.Price = price
	s.Currency = raw.Currency
	s.UpdatedAt = time.UnixMilli(raw.Updated)
	return nil
}

// DeriveSymbol returns the display symbol for a raw ticker: everything before
// the first "_". "AAPL_US_EQ" -> "AAPL", "" -> "", "_X" -> "".
func DeriveSymbol(ticker string) string {
	symbol, _, _ := strings.Cut(ticker, "_")
	return symbol
}
