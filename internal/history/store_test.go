package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Record(ctx, KindScan, map[string]any{"threshold": 70}, 0, 0, 0); err != nil {
		t.Fatalf("record scan: %v", err)
	}
	id, err := store.Record(ctx, KindMerge, map[string]any{"target": "Python"}, 2, 2, 0)
	if err != nil {
		t.Fatalf("record merge: %v", err)
	}
	if id == 0 {
		t.Fatal("zero event id")
	}

	events, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Kind != KindMerge {
		t.Fatalf("newest event kind = %q, want merge first", events[0].Kind)
	}
	if events[0].Detail["target"] != "Python" {
		t.Fatalf("detail = %v", events[0].Detail)
	}
	if events[0].Items != 2 || events[0].Updated != 2 || events[0].Errors != 0 {
		t.Fatalf("counters = %+v", events[0])
	}
	if events[0].CreatedAt.IsZero() {
		t.Fatal("created_at not parsed")
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.Record(ctx, KindRemove, nil, 1, 1, 0); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	events, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
}

func TestPruneRemovesOldEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Record(ctx, KindScan, nil, 0, 0, 0); err != nil {
		t.Fatalf("record: %v", err)
	}

	removed, err := store.Prune(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed %d recent events", removed)
	}

	removed, err = store.Prune(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	events, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events remain after prune: %v", events)
	}
}

func TestMigrateStampsSchemaVersion(t *testing.T) {
	store := openTestStore(t)

	var version int
	if err := store.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != len(schemaSteps) {
		t.Fatalf("user_version = %d, want %d", version, len(schemaSteps))
	}

	// A second pass over an up-to-date database is a no-op.
	if err := store.migrate(context.Background()); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
}

func TestReopenKeepsEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Record(ctx, KindRename, nil, 1, 1, 0); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	events, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 1 || events[0].Kind != KindRename {
		t.Fatalf("events = %+v", events)
	}
}
