package db

import (
	"context"
	"errors"

	"iris-api/models"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict indicates the document changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
	// ErrExists indicates a create collided with an existing record.
	ErrExists = errors.New("record already exists")
)

// Predicate selects events in QueryEvents. A nil predicate matches all.
type Predicate func(*models.Event) bool

// Store is durable persistence for event and costume documents. Event writes
// are conditional on the version the caller read.
type Store interface {
	GetEvent(ctx context.Context, id string) (models.Event, error)
	QueryEvents(ctx context.Context, match Predicate) ([]models.Event, error)
	// CreateEvent stores a new event at version 1, generating an id when
	// none is set.
	CreateEvent(ctx context.Context, e models.Event) (models.Event, error)
	// PutEvent replaces the event only if its stored version equals
	// expectedVersion, returning the event at its new version.
	PutEvent(ctx context.Context, e models.Event, expectedVersion int64) (models.Event, error)
	DeleteEvent(ctx context.Context, id string) error

	ListCostumes(ctx context.Context) ([]models.Costume, error)
	CreateCostume(ctx context.Context, c models.Costume) (models.Costume, error)

	Ping(ctx context.Context) error
	Close() error
}
