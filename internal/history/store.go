// Package history persists an audit trail of tag scans and bulk mutations in
// a local SQLite database. Writes are advisory: callers treat failures as
// non-fatal so an unwritable database never blocks tag operations.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Event kinds recorded by the daemon.
const (
	KindScan   = "scan"
	KindMerge  = "merge"
	KindRename = "rename"
	KindRemove = "remove"
)

// Event is one recorded tag operation.
type Event struct {
	ID        int64          `json:"id"`
	Kind      string         `json:"kind"`
	Detail    map[string]any `json:"detail"`
	Items     int            `json:"items"`
	Updated   int            `json:"updated"`
	Errors    int            `json:"errors"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store manages audit persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the audit database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure state dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// schemaSteps is the ordered event-log schema history. The database's
// user_version records how many steps have been applied; never reorder or
// edit an applied step, only append.
var schemaSteps = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		detail_json TEXT NOT NULL DEFAULT '{}',
		items INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);`,
}

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= len(schemaSteps) {
		return nil
	}

	for step := version; step < len(schemaSteps); step++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		if _, err := tx.ExecContext(ctx, schemaSteps[step]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply schema step %d: %w", step+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record schema step %d: %w", step+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit schema step %d: %w", step+1, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one event and returns its identifier.
func (s *Store) Record(ctx context.Context, kind string, detail map[string]any, items, updated, errCount int) (int64, error) {
	if detail == nil {
		detail = map[string]any{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return 0, fmt.Errorf("marshal detail: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO events (kind, detail_json, items, updated, errors, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		kind,
		string(detailJSON),
		items,
		updated,
		errCount,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, detail_json, items, updated, errors, created_at
         FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			event      Event
			detailJSON string
			createdAt  string
		)
		if err := rows.Scan(&event.ID, &event.Kind, &detailJSON, &event.Items, &event.Updated, &event.Errors, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(detailJSON), &event.Detail); err != nil {
			event.Detail = map[string]any{}
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			event.CreatedAt = ts
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Prune deletes events older than cutoff and reports how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		"DELETE FROM events WHERE created_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}
