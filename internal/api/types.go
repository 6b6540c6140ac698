package api

import "github.com/shopspring/decimal"

// APIInstrument from GET /api/v0/equity/metadata/instruments
type APIInstrument struct {
	Ticker            string          `json:"ticker"`
	Type              string          `json:"type"`
	WorkingScheduleID int64           `json:"workingScheduleId"`
	ISIN              string          `json:"isin"`
	CurrencyCode      string          `json:"currencyCode"`
	Name              string          `json:"name"`
	ShortName         string          `json:"shortName"`
	MaxOpenQuantity   decimal.Decimal `json:"maxOpenQuantity"`
	AddedOn           string          `json:"addedOn"` // ISO 8601
}

// APIPosition from GET /api/v0/equity/portfolio
type APIPosition struct {
	Ticker          string           `json:"ticker"`
	Quantity        decimal.Decimal  `json:"quantity"`
	AveragePrice    decimal.Decimal  `json:"averagePrice"`
	CurrentPrice    decimal.Decimal  `json:"currentPrice"`
	PPL             decimal.Decimal  `json:"ppl"`
	FxPPL           *decimal.Decimal `json:"fxPpl"`
	InitialFillDate string           `json:"initialFillDate"` // ISO 8601
	Frontend        string           `json:"frontend"`
	MaxBuy          decimal.Decimal  `json:"maxBuy"`
	MaxSell         decimal.Decimal  `json:"maxSell"`
	PieQuantity     decimal.Decimal  `json:"pieQuantity"`
}
