package store

import (
	"context"
	"time"

	"github.com/pixelwall/pixelwall-server/internal/grid"
)

// PaintEvent is one accepted cell change, kept for the history API. The log
// is observational only: grid state is never rebuilt from it.
type PaintEvent struct {
	ID        int64
	ConnID    string
	Name      string
	X         int
	Y         int
	Color     grid.Color
	CreatedAt time.Time
}

// Store persists paint history.
type Store interface {
	// RecordPaint appends one paint event to the log.
	RecordPaint(ctx context.Context, ev PaintEvent) error

	// RecentPaints returns up to limit events, newest first.
	RecentPaints(ctx context.Context, limit int) ([]PaintEvent, error)

	// Close releases the underlying database.
	Close() error
}
