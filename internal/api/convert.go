package api

import (
	"time"

	"github.com/rickgao/stockfeed/internal/model"
)

// ParseTimestamp parses an ISO 8601 timestamp as sent by Trading 212.
// Returns the zero time for empty or invalid input.
func ParseTimestamp(iso string) time.Time {
	if iso == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// Offsets without a colon, e.g. "2023-01-02T15:04:05.000+0000"
		t, err = time.Parse("2006-01-02T15:04:05.000-0700", iso)
		if err != nil {
			return time.Time{}
		}
	}

	return t
}

// ToModel converts an APIInstrument to model.Instrument.
func (i *APIInstrument) ToModel() model.Instrument {
	return model.Instrument{
		Ticker:            i.Ticker,
		CurrencyCode:      i.CurrencyCode,
		Type:              i.Type,
		ISIN:              i.ISIN,
		Name:              i.Name,
		ShortName:         i.ShortName,
		WorkingScheduleID: i.WorkingScheduleID,
		MaxOpenQuantity:   i.MaxOpenQuantity,
		AddedOn:           ParseTimestamp(i.AddedOn),
	}
}

// ToModel converts an APIPosition to model.Position.
func (p *APIPosition) ToModel() model.Position {
	return model.Position{
		Ticker:          p.Ticker,
		CurrentPrice:    p.CurrentPrice,
		Quantity:        p.Quantity,
		AveragePrice:    p.AveragePrice,
		PPL:             p.PPL,
		FxPPL:           p.FxPPL,
		InitialFillDate: ParseTimestamp(p.InitialFillDate),
	}
}
