package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"iris-api/db/migrations"
	"iris-api/models"
)

// DB is the SQLite document store. Each event is one JSON document guarded
// by an integer version column.
type DB struct {
	*sql.DB
}

var _ Store = (*DB)(nil)

// NewDB initializes and connects to the SQLite database
func NewDB(dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite dsn is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers inside this process and avoids
	// "database is locked" errors under concurrent writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// InitSchema applies the embedded migrations.
func (db *DB) InitSchema(ctx context.Context) error {
	return applyMigrations(ctx, db.DB, migrations.FS)
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func decodeEvent(doc string, version int64) (models.Event, error) {
	var e models.Event
	if err := json.Unmarshal([]byte(doc), &e); err != nil {
		return models.Event{}, fmt.Errorf("decode event document: %w", err)
	}
	e.Version = version
	e.Normalize()
	return e, nil
}

// GetEvent loads one event document.
func (db *DB) GetEvent(ctx context.Context, id string) (models.Event, error) {
	var (
		doc     string
		version int64
	)
	err := db.QueryRowContext(ctx, `SELECT doc, version FROM events WHERE id = ?`, id).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrNotFound
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("get event: %w", err)
	}
	return decodeEvent(doc, version)
}

// QueryEvents returns matching events in creation order.
func (db *DB) QueryEvents(ctx context.Context, match Predicate) ([]models.Event, error) {
	rows, err := db.QueryContext(ctx, `SELECT doc, version FROM events ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			doc     string
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e, err := decodeEvent(doc, version)
		if err != nil {
			return nil, err
		}
		if match == nil || match(&e) {
			events = append(events, e)
		}
	}
	return events, rows.Err()
}

// CreateEvent inserts a new event document at version 1.
func (db *DB) CreateEvent(ctx context.Context, e models.Event) (models.Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Version = 1
	e.Normalize()
	doc, err := json.Marshal(e)
	if err != nil {
		return models.Event{}, fmt.Errorf("encode event document: %w", err)
	}

	now := toMillis(time.Now())
	_, err = db.ExecContext(ctx, `
		INSERT INTO events (id, version, is_archived, doc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.Version, boolInt(e.IsArchived), string(doc), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Event{}, ErrExists
		}
		return models.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

// PutEvent replaces the document with a conditional update on the version
// column, the same compare-and-swap the capacity check relies on.
func (db *DB) PutEvent(ctx context.Context, e models.Event, expectedVersion int64) (models.Event, error) {
	e.Version = expectedVersion + 1
	e.Normalize()
	doc, err := json.Marshal(e)
	if err != nil {
		return models.Event{}, fmt.Errorf("encode event document: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		UPDATE events
		SET doc = ?, version = ?, is_archived = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, string(doc), e.Version, boolInt(e.IsArchived), toMillis(time.Now()), e.ID, expectedVersion)
	if err != nil {
		return models.Event{}, fmt.Errorf("update event: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var found int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, e.ID).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return models.Event{}, ErrNotFound
		}
		if err != nil {
			return models.Event{}, fmt.Errorf("check event: %w", err)
		}
		return models.Event{}, ErrVersionConflict
	}
	return e, nil
}

// DeleteEvent removes an event and its rosters.
func (db *DB) DeleteEvent(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCostumes lists the registry alphabetically.
func (db *DB) ListCostumes(ctx context.Context) ([]models.Costume, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, description, created_at FROM costumes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query costumes: %w", err)
	}
	defer rows.Close()

	costumes := []models.Costume{}
	for rows.Next() {
		var (
			c       models.Costume
			created int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &created); err != nil {
			return nil, fmt.Errorf("scan costume: %w", err)
		}
		c.CreatedAt = fromMillis(created)
		costumes = append(costumes, c)
	}
	return costumes, rows.Err()
}

// CreateCostume adds a costume; names are unique.
func (db *DB) CreateCostume(ctx context.Context, c models.Costume) (models.Costume, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO costumes (id, name, description, created_at) VALUES (?, ?, ?, ?)
	`, c.ID, c.Name, c.Description, toMillis(c.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Costume{}, ErrExists
		}
		return models.Costume{}, fmt.Errorf("insert costume: %w", err)
	}
	c.CreatedAt = fromMillis(toMillis(c.CreatedAt))
	return c, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
