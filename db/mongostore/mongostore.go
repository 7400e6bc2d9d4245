// Package mongostore implements db.Store on MongoDB. Events are stored as
// native documents with a version field used as the compare-and-swap key.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"iris-api/db"
	"iris-api/models"
)

const (
	eventsCollection   = "events"
	costumesCollection = "costumes"
)

// Store provides MongoDB-backed persistence for events and costumes.
type Store struct {
	client   *mongo.Client
	events   *mongo.Collection
	costumes *mongo.Collection
}

var _ db.Store = (*Store)(nil)

// Open connects to uri, verifies the connection and ensures indexes.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("mongo uri is required")
	}
	if strings.TrimSpace(database) == "" {
		return nil, errors.New("mongo database is required")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	mdb := client.Database(database)
	s := &Store{
		client:   client,
		events:   mdb.Collection(eventsCollection),
		costumes: mdb.Collection(costumesCollection),
	}

	_, err = s.costumes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure costume index: %w", err)
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Drop removes both collections. Tests use it to start from empty.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.events.Drop(ctx); err != nil {
		return err
	}
	return s.costumes.Drop(ctx)
}

func (s *Store) GetEvent(ctx context.Context, id string) (models.Event, error) {
	var e models.Event
	err := s.events.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Event{}, db.ErrNotFound
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("get event: %w", err)
	}
	e.Normalize()
	return e, nil
}

func (s *Store) QueryEvents(ctx context.Context, match db.Predicate) ([]models.Event, error) {
	cur, err := s.events.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	var all []models.Event
	if err := cur.All(ctx, &all); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	events := []models.Event{}
	for i := range all {
		all[i].Normalize()
		if match == nil || match(&all[i]) {
			events = append(events, all[i])
		}
	}
	return events, nil
}

func (s *Store) CreateEvent(ctx context.Context, e models.Event) (models.Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Version = 1
	e.Normalize()
	if _, err := s.events.InsertOne(ctx, e); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Event{}, db.ErrExists
		}
		return models.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

// PutEvent replaces the document only while its version still equals
// expectedVersion.
func (s *Store) PutEvent(ctx context.Context, e models.Event, expectedVersion int64) (models.Event, error) {
	e.Version = expectedVersion + 1
	e.Normalize()
	res, err := s.events.ReplaceOne(ctx, bson.D{
		{Key: "_id", Value: e.ID},
		{Key: "version", Value: expectedVersion},
	}, e)
	if err != nil {
		return models.Event{}, fmt.Errorf("replace event: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.events.CountDocuments(ctx, bson.D{{Key: "_id", Value: e.ID}})
		if err != nil {
			return models.Event{}, fmt.Errorf("check event: %w", err)
		}
		if n == 0 {
			return models.Event{}, db.ErrNotFound
		}
		return models.Event{}, db.ErrVersionConflict
	}
	return e, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.events.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if res.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *Store) ListCostumes(ctx context.Context) ([]models.Costume, error) {
	cur, err := s.costumes.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query costumes: %w", err)
	}
	costumes := []models.Costume{}
	if err := cur.All(ctx, &costumes); err != nil {
		return nil, fmt.Errorf("decode costumes: %w", err)
	}
	return costumes, nil
}

func (s *Store) CreateCostume(ctx context.Context, c models.Costume) (models.Costume, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.CreatedAt = c.CreatedAt.Truncate(time.Millisecond)
	if _, err := s.costumes.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Costume{}, db.ErrExists
		}
		return models.Costume{}, fmt.Errorf("insert costume: %w", err)
	}
	return c, nil
}
