package api

import (
	"time"

	"github.com/rickgao/livequote/internal/model"
)

// IndexToQuote converts an overview entry. Returns false if it has no price.
func IndexToQuote(s IndexSummary, now time.Time) (model.Quote, bool) {
	if s.Symbol == "" || !s.Price.Valid {
		return model.Quote{}, false
	}

	return model.Quote{
		Symbol:        s.Symbol,
		Name:          s.Name,
		Price:         s.Price.Decimal,
		Change:        s.Change.Decimal,
		PercentChange: s.PercentChange.Decimal,
		UpdatedAt:     now,
	}, true
}

// StockToQuote converts the per-symbol bundle. Returns false if the quote
// section is missing, errored or has no price.
func StockToQuote(symbol string, resp StockAllResponse, now time.Time) (model.Quote, bool) {
	q := resp.Quote
	if q == nil || q.Error != "" || !q.Price.Valid {
		return model.Quote{}, false
	}

	if q.Symbol != "" {
		symbol = q.Symbol
	}

	out := model.Quote{
		Symbol:        symbol,
		Name:          q.Name,
		Price:         q.Price.Decimal,
		Change:        q.Change.Decimal,
		PercentChange: q.ChangesPercentage.Decimal,
		Volume:        q.Volume,
		UpdatedAt:     now,
	}

	if resp.Profile != nil {
		if out.Name == "" {
			out.Name = resp.Profile.CompanyName
		}
		out.Currency = resp.Profile.Currency
	}

	return out, true
}
