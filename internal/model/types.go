package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

// Quote is the last-known price snapshot for a symbol.
type Quote struct {
	Symbol        string              `json:"symbol"`
	Name          string              `json:"name,omitempty"` // Display name (overview channel only)
	Price         decimal.Decimal     `json:"price"`
	Change        decimal.Decimal     `json:"change"`
	PercentChange decimal.Decimal     `json:"percent_change"`
	Currency      string              `json:"currency,omitempty"`
	Volume        decimal.NullDecimal `json:"volume"`
	Timestamp     time.Time           `json:"timestamp,omitzero"` // Source time of the last update, if the feed sent one
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Update is a decoded inbound frame. Absent fields are left invalid and
// do not overwrite the cached value.
type Update struct {
	Symbol        string
	Price         decimal.NullDecimal
	Change        decimal.NullDecimal
	PercentChange decimal.NullDecimal
	Volume        decimal.NullDecimal
	Timestamp     time.Time // Source time; zero when the frame carried none

	Generation uint64    // Connection generation the frame arrived on
	ReceivedAt time.Time // Loop time when the frame was decoded
}

// -----------------------------------------------------------------------------
// Flash
// -----------------------------------------------------------------------------

// FlashDirection is the sign of a price delta.
type FlashDirection int

const (
	FlashNone FlashDirection = iota
	FlashUp
	FlashDown
)

func (d FlashDirection) String() string {
	switch d {
	case FlashUp:
		return "up"
	case FlashDown:
		return "down"
	default:
		return "none"
	}
}

// FlashEntry is a transient highlight for one symbol.
type FlashEntry struct {
	Symbol    string         `json:"symbol"`
	Direction FlashDirection `json:"direction"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// MarshalText lets FlashDirection render as "up"/"down"/"none" in JSON.
func (d FlashDirection) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// ConnectionState is the lifecycle state of the live connection.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Closing
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
