package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// archivePageSize bounds how many ticks are exported per object so a large
// retention sweep never buffers the whole backlog in memory.
const archivePageSize = 10000

// archiveLockTTL bounds how long one sweep may hold the distributed lock.
const archiveLockTTL = 10 * time.Minute

// TickArchiveStore is the slice of the tick store the archiver needs.
type TickArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.SourcedPoint, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// TickArchiver implements domain.Archiver. It pages aged-out ticks from
// the store, serializes each page to JSONL, uploads it, and prunes the
// exported rows only after every upload succeeded. A distributed lock
// keeps concurrent instances from sweeping the same rows.
type TickArchiver struct {
	writer domain.BlobWriter
	ticks  TickArchiveStore
	locks  domain.LockManager
	logger *slog.Logger
}

// NewTickArchiver creates a TickArchiver.
func NewTickArchiver(writer domain.BlobWriter, ticks TickArchiveStore, locks domain.LockManager, logger *slog.Logger) *TickArchiver {
	return &TickArchiver{
		writer: writer,
		ticks:  ticks,
		locks:  locks,
		logger: logger.With(slog.String("component", "tick_archiver")),
	}
}

// ArchiveTicks exports every tick recorded strictly before the cutoff to
// object storage and then deletes them from the store. It returns the
// number of ticks archived. When another instance holds the archive lock
// it returns domain.ErrLockHeld without doing any work.
func (a *TickArchiver) ArchiveTicks(ctx context.Context, before time.Time) (int64, error) {
	unlock, err := a.locks.Acquire(ctx, "archive:ticks", archiveLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return 0, domain.ErrLockHeld
		}
		return 0, fmt.Errorf("s3blob: archive ticks lock: %w", err)
	}
	defer unlock()

	var total int64
	page := 0
	for {
		points, err := a.ticks.ListBefore(ctx, before, archivePageSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive ticks query: %w", err)
		}
		if len(points) == 0 {
			break
		}

		buf, err := marshalJSONL(points)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive ticks marshal: %w", err)
		}

		path := archivePath(before, page)
		if err := a.upload(ctx, path, buf); err != nil {
			return total, fmt.Errorf("s3blob: archive ticks upload: %w", err)
		}

		// Prune the exported rows so the next page starts past them. The
		// last point's timestamp is exclusive in ListBefore, so add one
		// millisecond to cover it.
		cut := time.UnixMilli(points[len(points)-1].Timestamp + 1).UTC()
		if cut.After(before) {
			cut = before
		}
		if _, err := a.ticks.DeleteBefore(ctx, cut); err != nil {
			return total, fmt.Errorf("s3blob: archive ticks prune: %w", err)
		}

		total += int64(len(points))
		a.logger.Info("archived tick page",
			slog.String("path", path),
			slog.Int("count", len(points)),
		)

		if len(points) < archivePageSize {
			break
		}
		page++
	}

	return total, nil
}

// multipartWriter is satisfied by writers that can split large payloads
// into concurrent part uploads.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// upload picks the multipart path for payloads at or above the S3 part
// minimum and a plain PutObject otherwise.
func (a *TickArchiver) upload(ctx context.Context, path string, buf []byte) error {
	if mp, ok := a.writer.(multipartWriter); ok && int64(len(buf)) >= minPartSize {
		return mp.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the S3 key for one exported page, partitioned by the
// year-month of the cutoff:
//
//	archive/ticks/2026-08/000.jsonl
func archivePath(before time.Time, page int) string {
	return fmt.Sprintf("archive/ticks/%s/%03d.jsonl", before.Format("2006-01"), page)
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL(points []domain.SourcedPoint) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, p := range points {
		if err := enc.Encode(p); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*TickArchiver)(nil)
