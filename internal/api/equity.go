package api

import (
	"context"
	"fmt"

	"github.com/rickgao/stockfeed/internal/model"
)

const (
	instrumentsPath = "/api/v0/equity/metadata/instruments"
	portfolioPath   = "/api/v0/equity/portfolio"
)

// GetInstruments fetches metadata for every tradable equity instrument.
func (c *Client) GetInstruments(ctx context.Context) ([]model.Instrument, error) {
	var resp []APIInstrument
	if err := c.get(ctx, instrumentsPath, &resp); err != nil {
		return nil, fmt.Errorf("get instruments: %w", err)
	}

	instruments := make([]model.Instrument, 0, len(resp))
	for i := range resp {
		instruments = append(instruments, resp[i].ToModel())
	}
	return instruments, nil
}

// GetPortfolio fetches all open positions with their current prices.
func (c *Client) GetPortfolio(ctx context.Context) ([]model.Position, error) {
	var resp []APIPosition
	if err := c.get(ctx, portfolioPath, &resp); err != nil {
		return nil, fmt.Errorf("get portfolio: %w", err)
	}

	positions := make([]model.Position, 0, len(resp))
	for i := range resp {
		positions = append(positions, resp[i].ToModel())
	}
	return positions, nil
}
