// Package metrics keeps the latest known metrics per (source, symbol) and
// derives period-over-period change. It is the single serialization point
// every producer (live adapters and the replay engine) writes through.
package metrics

import (
	"sync"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// Store is the in-memory metrics table for the currently selected symbol.
// Writes tagged with any other symbol are rejected, which is what prevents
// cross-talk when the user switches instruments while stale points are
// still in flight.
type Store struct {
	mu       sync.RWMutex
	selected domain.Symbol
	table    map[domain.DataSource]map[domain.Symbol]domain.CurrentPriceMetrics
}

// NewStore creates an empty Store with no symbol selected.
func NewStore() *Store {
	return &Store{
		selected: domain.SymbolNone,
		table:    make(map[domain.DataSource]map[domain.Symbol]domain.CurrentPriceMetrics),
	}
}

// Selected returns the symbol the table currently accepts.
func (s *Store) Selected() domain.Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// AddDataPoint records a point and derives its metrics row. It returns an
// error (and leaves the table untouched) for unknown sources or symbols and
// for points tagged with a symbol that is no longer selected. Updates are
// last-write-wins; points within one source arrive already ordered.
func (s *Store) AddDataPoint(source domain.DataSource, symbol domain.Symbol, p domain.PricePoint) error {
	if !domain.KnownSource(source) {
		return domain.ErrUnknownSource
	}
	if !domain.KnownSymbol(symbol) {
		return domain.ErrUnknownSymbol
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if symbol != s.selected {
		return domain.ErrStaleSymbol
	}

	row := s.table[source]
	if row == nil {
		row = make(map[domain.Symbol]domain.CurrentPriceMetrics)
		s.table[source] = row
	}

	var prev *domain.CurrentPriceMetrics
	if m, ok := row[symbol]; ok {
		prev = &m
	}
	row[symbol] = domain.NextMetrics(prev, p)
	return nil
}

// Metrics returns the latest row for (source, symbol), if any.
func (s *Store) Metrics(source domain.DataSource, symbol domain.Symbol) (domain.CurrentPriceMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.table[source]
	if !ok {
		return domain.CurrentPriceMetrics{}, false
	}
	m, ok := row[symbol]
	return m, ok
}

// Snapshot returns every source's latest row for the given symbol. Sources
// that have not produced data since the last reset are absent.
func (s *Store) Snapshot(symbol domain.Symbol) map[domain.DataSource]domain.CurrentPriceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.DataSource]domain.CurrentPriceMetrics)
	for source, row := range s.table {
		if m, ok := row[symbol]; ok {
			out[source] = m
		}
	}
	return out
}

// Reset atomically replaces the whole table and switches the accepted
// symbol. Every prior row is dropped, never merged.
func (s *Store) Reset(selected domain.Symbol) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = selected
	s.table = make(map[domain.DataSource]map[domain.Symbol]domain.CurrentPriceMetrics)
}
