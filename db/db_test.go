package db_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"iris-api/db"
	"iris-api/db/storetest"
)

var testDay = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "events.db") + "?_pragma=busy_timeout(5000)"
	store, err := db.NewDB(dsn)
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	return store
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) db.Store {
		return openTestDB(t)
	})
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	store := openTestDB(t)
	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("second InitSchema() error = %v", err)
	}

	var applied int
	if err := store.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 2 {
		t.Fatalf("applied migrations = %d, want 2", applied)
	}
}

func TestVersionColumnTracksDocument(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	created, err := store.CreateEvent(ctx, storetest.Event("column", testDay))
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	created.IsArchived = true
	if _, err := store.PutEvent(ctx, created, created.Version); err != nil {
		t.Fatalf("PutEvent() error = %v", err)
	}

	var (
		version  int64
		archived int
	)
	err = store.QueryRow("SELECT version, is_archived FROM events WHERE id = ?", created.ID).Scan(&version, &archived)
	if err != nil {
		t.Fatalf("query row: %v", err)
	}
	if version != 2 || archived != 1 {
		t.Fatalf("version=%d archived=%d, want 2 and 1", version, archived)
	}
}
