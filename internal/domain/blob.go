package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage. Used by the tick archiver to
// export aged-out rows before pruning them from the database.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves old ticks from the database to cold storage.
type Archiver interface {
	ArchiveTicks(ctx context.Context, before time.Time) (int64, error)
}
