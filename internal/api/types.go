package api

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// IndexSummary is one entry of GET /api/indices/summary.
type IndexSummary struct {
	Name          string              `json:"name"`
	Symbol        string              `json:"symbol"`
	Price         decimal.NullDecimal `json:"price"`
	Change        decimal.NullDecimal `json:"change"`
	PercentChange decimal.NullDecimal `json:"percent_change"`
}

// StockAllResponse from GET /api/stocks/{symbol}/all. Only the quote is
// decoded; the other sections belong to the detail page.
type StockAllResponse struct {
	Quote   *StockQuote   `json:"quote"`
	Profile *StockProfile `json:"profile"`
}

// StockQuote is the quote section of the per-symbol bundle.
type StockQuote struct {
	Symbol            string              `json:"symbol"`
	Name              string              `json:"name"`
	Price             decimal.NullDecimal `json:"price"`
	Change            decimal.NullDecimal `json:"change"`
	ChangesPercentage decimal.NullDecimal `json:"changesPercentage"`
	Volume            decimal.NullDecimal `json:"volume"`
	Error             string              `json:"error,omitempty"` // Set when the backend failed to fetch the quote
}

// StockProfile is the subset of the profile section used for display.
type StockProfile struct {
	CompanyName string `json:"companyName"`
	Currency    string `json:"currency"`
}

// UnmarshalJSON accepts the quote section either as an object or as the
// upstream list form, in which case the first element is used.
func (q *StockQuote) UnmarshalJSON(data []byte) error {
	type plain StockQuote

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []plain
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*q = StockQuote{}
		if len(list) > 0 {
			*q = StockQuote(list[0])
		}
		return nil
	}

	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*q = StockQuote(p)
	return nil
}
