package connection

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/livequote/internal/model"
)

// wireQuote is an inbound quote frame.
type wireQuote struct {
	Symbol        string              `json:"symbol"`
	Price         decimal.NullDecimal `json:"price"`
	Change        decimal.NullDecimal `json:"change"`
	PercentChange decimal.NullDecimal `json:"percent_change"`
	Volume        decimal.NullDecimal `json:"volume"`
	Timestamp     json.RawMessage     `json:"timestamp"`
}

// Decode parses a text frame into an Update. Generation and ReceivedAt are
// left for the caller to fill in.
func Decode(data []byte) (model.Update, error) {
	var w wireQuote
	if err := json.Unmarshal(data, &w); err != nil {
		return model.Update{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	symbol := strings.TrimSpace(w.Symbol)
	if symbol == "" {
		return model.Update{}, ErrMissingSymbol
	}

	return model.Update{
		Symbol:        symbol,
		Price:         w.Price,
		Change:        w.Change,
		PercentChange: w.PercentChange,
		Volume:        w.Volume,
		Timestamp:     parseTimestamp(w.Timestamp),
	}, nil
}

// unixMillisThreshold separates epoch seconds from epoch milliseconds.
const unixMillisThreshold = 1e12

// parseTimestamp reads the feed's source time: epoch seconds or
// milliseconds, as a number or numeric string, or an RFC 3339 string.
// Anything else yields the zero time.
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}

	var n decimal.Decimal
	if err := n.UnmarshalJSON(raw); err == nil {
		if n.Sign() <= 0 {
			return time.Time{}
		}
		if n.GreaterThanOrEqual(decimal.NewFromFloat(unixMillisThreshold)) {
			return time.UnixMilli(n.IntPart()).UTC()
		}
		return time.Unix(n.IntPart(), 0).UTC()
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
