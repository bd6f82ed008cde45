package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rickgao/livequote/internal/model"
)

// OverviewChannel selects the market overview snapshot.
const OverviewChannel = "overview"

// GetIndicesSummary fetches the market overview.
func (c *Client) GetIndicesSummary(ctx context.Context) ([]IndexSummary, error) {
	var resp []IndexSummary
	if err := c.get(ctx, "/api/indices/summary", nil, &resp); err != nil {
		return nil, fmt.Errorf("get indices summary: %w", err)
	}
	return resp, nil
}

// GetStockAll fetches the per-symbol bundle.
func (c *Client) GetStockAll(ctx context.Context, symbol string) (*StockAllResponse, error) {
	var resp StockAllResponse
	path := "/api/stocks/" + url.PathEscape(symbol) + "/all"
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get stock %s: %w", symbol, err)
	}
	return &resp, nil
}

// FetchQuotes returns the snapshot for channel: every index for the
// overview channel, otherwise the single symbol's quote. Entries without a
// price are skipped.
func (c *Client) FetchQuotes(ctx context.Context, channel string) ([]model.Quote, error) {
	now := time.Now()

	if channel == OverviewChannel {
		summary, err := c.GetIndicesSummary(ctx)
		if err != nil {
			return nil, err
		}

		quotes := make([]model.Quote, 0, len(summary))
		for _, s := range summary {
			q, ok := IndexToQuote(s, now)
			if !ok {
				c.logger.Debug("skipping index without price", "symbol", s.Symbol)
				continue
			}
			quotes = append(quotes, q)
		}
		return quotes, nil
	}

	resp, err := c.GetStockAll(ctx, channel)
	if err != nil {
		return nil, err
	}

	q, ok := StockToQuote(channel, *resp, now)
	if !ok {
		c.logger.Debug("snapshot has no usable quote", "symbol", channel)
		return nil, nil
	}
	return []model.Quote{q}, nil
}
