package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pixelwall/pixelwall-server/internal/grid"
	"github.com/pixelwall/pixelwall-server/internal/store"
)

// SQLiteStore implements store.Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS paint_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	conn_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	x          INTEGER NOT NULL,
	y          INTEGER NOT NULL,
	r          INTEGER NOT NULL,
	g          INTEGER NOT NULL,
	b          INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// New opens (creating if needed) the database at dbPath and applies the
// schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup opens the database and runs a setup function. Useful for
// tests that want their own schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// RecordPaint appends one paint event to the log.
func (s *SQLiteStore) RecordPaint(ctx context.Context, ev store.PaintEvent) error {
	const query = `
		INSERT INTO paint_events (conn_id, name, x, y, r, g, b)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		ev.ConnID, ev.Name, ev.X, ev.Y, ev.Color.R, ev.Color.G, ev.Color.B); err != nil {
		return fmt.Errorf("insert paint event: %w", err)
	}
	return nil
}

// RecentPaints returns up to limit events, newest first.
func (s *SQLiteStore) RecentPaints(ctx context.Context, limit int) ([]store.PaintEvent, error) {
	const query = `
		SELECT id, conn_id, name, x, y, r, g, b, created_at
		FROM paint_events
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query paint events: %w", err)
	}
	defer rows.Close()

	events := []store.PaintEvent{}
	for rows.Next() {
		var ev store.PaintEvent
		var c grid.Color
		if err := rows.Scan(&ev.ID, &ev.ConnID, &ev.Name, &ev.X, &ev.Y,
			&c.R, &c.G, &c.B, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan paint event: %w", err)
		}
		ev.Color = c
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paint events: %w", err)
	}
	return events, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
