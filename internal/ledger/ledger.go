package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Entry is one published collection of a run. Part is 0 for an unchunked
// upload and 1..Parts for chunks.
type Entry struct {
	RunID     string
	Part      int
	Parts     int
	Name      string
	Key       string
	URL       string
	CreatedAt time.Time
}

// Ledger records published collection URLs so partially published runs can be found later
type Ledger struct {
	db  *sql.DB
	log *zap.Logger
}

// Open connects to postgres and prepares the table
func Open(ctx context.Context, databaseURL string, log *zap.Logger) (*Ledger, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach ledger database: %w", err)
	}
	return New(ctx, db, log)
}

// New creates a ledger on an existing connection
func New(ctx context.Context, db *sql.DB, log *zap.Logger) (*Ledger, error) {
	l := &Ledger{db: db, log: log}

	if err := l.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger table: %w", err)
	}

	return l, nil
}

// ensureTable creates the published_collections table if it doesn't exist
func (l *Ledger) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS published_collections (
			run_id TEXT NOT NULL,
			part INTEGER NOT NULL,
			parts INTEGER NOT NULL,
			name TEXT NOT NULL,
			collection_key TEXT NOT NULL,
			url TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (run_id, part)
		)
	`

	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create published_collections table: %w", err)
	}

	l.log.Debug("published_collections table ready")
	return nil
}

// Record stores a published collection, replacing an earlier entry for the same run and part
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO published_collections (run_id, part, parts, name, collection_key, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (run_id, part) DO UPDATE
		SET parts = EXCLUDED.parts,
		    name = EXCLUDED.name,
		    collection_key = EXCLUDED.collection_key,
		    url = EXCLUDED.url,
		    created_at = NOW()
	`

	if _, err := l.db.ExecContext(ctx, query, e.RunID, e.Part, e.Parts, e.Name, e.Key, e.URL); err != nil {
		return fmt.Errorf("failed to record collection: %w", err)
	}
	return nil
}

// ForRun lists the collections published by a run in part order
func (l *Ledger) ForRun(ctx context.Context, runID string) ([]Entry, error) {
	query := `
		SELECT run_id, part, parts, name, collection_key, url, created_at
		FROM published_collections
		WHERE run_id = $1
		ORDER BY part
	`

	rows, err := l.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.Part, &e.Parts, &e.Name, &e.Key, &e.URL, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}
