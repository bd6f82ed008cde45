// Package quotes holds the last-known quote for every symbol seen on the
// live channel and reconciles partial updates into it.
package quotes

import (
	"sort"
	"sync"
	"time"

	"github.com/rickgao/livequote/internal/model"
)

type entry struct {
	quote    model.Quote
	hasPrice bool
}

// Store maps symbol to quote. Apply and Load are called from the event loop;
// the lock only publishes state to readers on other goroutines.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
	}
}

// Apply merges the fields present in u into the symbol's quote, creating it
// if absent, and returns the direction of the price move.
//
// Up or Down is only reported when a previous price existed and the new one
// differs from it.
func (s *Store) Apply(u model.Update) model.FlashDirection {
	if u.Symbol == "" {
		return model.FlashNone
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[u.Symbol]
	if !ok {
		e = &entry{quote: model.Quote{Symbol: u.Symbol}}
		s.entries[u.Symbol] = e
	}

	dir := model.FlashNone
	if u.Price.Valid {
		if e.hasPrice {
			switch u.Price.Decimal.Cmp(e.quote.Price) {
			case 1:
				dir = model.FlashUp
			case -1:
				dir = model.FlashDown
			}
		}
		e.quote.Price = u.Price.Decimal
		e.hasPrice = true
	}
	if u.Change.Valid {
		e.quote.Change = u.Change.Decimal
	}
	if u.PercentChange.Valid {
		e.quote.PercentChange = u.PercentChange.Decimal
	}
	if u.Volume.Valid {
		e.quote.Volume = u.Volume
	}
	if !u.Timestamp.IsZero() {
		e.quote.Timestamp = u.Timestamp
	}

	if !u.ReceivedAt.IsZero() {
		e.quote.UpdatedAt = u.ReceivedAt
	}

	return dir
}

// Load pre-populates the store from a snapshot. Existing entries for the same
// symbols are replaced. Returns the number of quotes loaded.
func (s *Store) Load(quotes []model.Quote) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, q := range quotes {
		if q.Symbol == "" {
			continue
		}
		if q.UpdatedAt.IsZero() {
			q.UpdatedAt = time.Now()
		}
		s.entries[q.Symbol] = &entry{quote: q, hasPrice: true}
		n++
	}
	return n
}

// Get returns the quote for symbol.
func (s *Store) Get(symbol string) (model.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[symbol]
	if !ok {
		return model.Quote{}, false
	}
	return e.quote, true
}

// Priced returns the quote for symbol once it has carried a price.
func (s *Store) Priced(symbol string) (model.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[symbol]
	if !ok || !e.hasPrice {
		return model.Quote{}, false
	}
	return e.quote, true
}

// Snapshot returns a copy of every quote, ordered by symbol.
func (s *Store) Snapshot() []model.Quote {
	s.mu.RLock()
	out := make([]model.Quote, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.quote)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Len returns the number of symbols tracked.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
