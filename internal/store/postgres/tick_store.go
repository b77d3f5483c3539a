package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// TickStore implements domain.TickStore using PostgreSQL.
type TickStore struct {
	pool *pgxpool.Pool
}

// NewTickStore creates a TickStore backed by the given connection pool.
func NewTickStore(pool *pgxpool.Pool) *TickStore {
	return &TickStore{pool: pool}
}

// Compile-time interface check.
var _ domain.TickStore = (*TickStore)(nil)

const tickSelectCols = `source, symbol, price, bid, ask, timestamp`

func scanTickRows(rows pgx.Rows) ([]domain.SourcedPoint, error) {
	var points []domain.SourcedPoint
	for rows.Next() {
		var p domain.SourcedPoint
		var ts time.Time
		if err := rows.Scan(&p.Source, &p.Symbol, &p.Price, &p.Bid, &p.Ask, &ts); err != nil {
			return nil, err
		}
		p.Timestamp = ts.UnixMilli()
		points = append(points, p)
	}
	return points, rows.Err()
}

// InsertBatch inserts points efficiently using pgx Batch. Duplicates
// (same source, symbol, timestamp) are silently skipped via ON CONFLICT
// DO NOTHING.
func (s *TickStore) InsertBatch(ctx context.Context, points []domain.SourcedPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO ticks (source, symbol, price, bid, ask, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source, symbol, timestamp) DO NOTHING`

	for _, p := range points {
		batch.Queue(query,
			p.Source, p.Symbol, p.Price, p.Bid, p.Ask,
			time.UnixMilli(p.Timestamp).UTC(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert tick batch item %d: %w", i, err)
		}
	}
	return nil
}

// Query returns points for a symbol at or after q.StartAt in ascending
// timestamp order. It fetches one row past q.Limit to learn whether more
// history exists, and reports that through HasNext.
func (s *TickStore) Query(ctx context.Context, q domain.TickQuery) (domain.HistoryBatch, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}

	query := `SELECT ` + tickSelectCols + ` FROM ticks WHERE symbol = $1 AND timestamp >= $2`
	args := []any{string(q.Symbol), time.UnixMilli(q.StartAt).UTC()}
	argIdx := 3

	if len(q.Sources) > 0 {
		srcs := make([]string, len(q.Sources))
		for i, src := range q.Sources {
			srcs[i] = string(src)
		}
		query += fmt.Sprintf(" AND source = ANY($%d)", argIdx)
		args = append(args, srcs)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY timestamp ASC LIMIT $%d", argIdx)
	args = append(args, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return domain.HistoryBatch{}, fmt.Errorf("postgres: query ticks: %w", err)
	}
	defer rows.Close()

	points, err := scanTickRows(rows)
	if err != nil {
		return domain.HistoryBatch{}, fmt.Errorf("postgres: scan ticks: %w", err)
	}

	batch := domain.HistoryBatch{Data: points}
	if len(points) > limit {
		batch.Data = points[:limit]
		batch.HasNext = true
	}
	return batch, nil
}

// LastTimestamp returns the most recent tick timestamp for a symbol, or
// the zero time if no ticks exist.
func (s *TickStore) LastTimestamp(ctx context.Context, symbol domain.Symbol) (time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx,
		"SELECT MAX(timestamp) FROM ticks WHERE symbol = $1", string(symbol)).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: last tick timestamp: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}

// ListBefore returns ticks strictly before the given time, oldest first
// (for archiving). A positive limit caps the page size.
func (s *TickStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.SourcedPoint, error) {
	query := `SELECT ` + tickSelectCols + ` FROM ticks WHERE timestamp < $1 ORDER BY timestamp ASC`
	args := []any{before}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ticks before: %w", err)
	}
	defer rows.Close()
	return scanTickRows(rows)
}

// DeleteBefore deletes all ticks before the given time. Returns the
// number deleted.
func (s *TickStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ticks WHERE timestamp < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete ticks before: %w", err)
	}
	return tag.RowsAffected(), nil
}
