package domain

import (
	"context"
	"time"
)

// HistoryBatch is one page of recorded ticks as returned by the historical
// query service. Data is ascending by timestamp across all requested
// sources; HasNext=false means no more data exists at or after the
// requested moment.
type HistoryBatch struct {
	Data    []SourcedPoint `json:"data"`
	HasNext bool           `json:"hasNext"`
}

// TickQuery selects recorded ticks for one symbol at or after StartAt
// (Unix milliseconds), restricted to the given sources when non-empty,
// capped at Limit rows.
type TickQuery struct {
	Symbol  Symbol
	StartAt int64
	Limit   int
	Sources []DataSource
}

// TickStore persists normalized price points and serves the historical
// query contract that the replay engine consumes.
type TickStore interface {
	InsertBatch(ctx context.Context, points []SourcedPoint) error
	Query(ctx context.Context, q TickQuery) (HistoryBatch, error)
	// LastTimestamp returns the newest recorded tick time for the symbol,
	// or the zero time when none exist.
	LastTimestamp(ctx context.Context, symbol Symbol) (time.Time, error)
	// DeleteBefore removes ticks older than the cutoff and reports how many
	// rows were dropped. Used by the archiver after a successful export.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	// ListBefore returns ticks older than the cutoff for archival export.
	ListBefore(ctx context.Context, before time.Time, limit int) ([]SourcedPoint, error)
}
