// Package storetest holds the behaviour every db.Store implementation must
// show. Store packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"iris-api/db"
	"iris-api/models"
)

// Factory opens a fresh, empty store for one subtest.
type Factory func(t *testing.T) db.Store

// Event returns a minimal valid event starting at day.
func Event(name string, day time.Time) models.Event {
	spotCount := 2
	return models.Event{
		Name:            name,
		GroupVisibility: []string{"DutchGarrison"},
		EventDates: []models.EventDate{{
			ID:             name + "-d0",
			Date:           day,
			AvailableSpots: &spotCount,
		}},
		MaxSignupDate: day,
		City:          "Utrecht",
	}
}

// Run exercises the store contract.
func Run(t *testing.T, open Factory) {
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("create and get", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		created, err := s.CreateEvent(ctx, Event("parade", day))
		if err != nil {
			t.Fatalf("CreateEvent() error = %v", err)
		}
		if created.ID == "" || created.Version != 1 {
			t.Fatalf("created = %+v, want id and version 1", created)
		}

		got, err := s.GetEvent(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetEvent() error = %v", err)
		}
		if got.Name != "parade" || got.Version != 1 || len(got.EventDates) != 1 {
			t.Fatalf("got = %+v", got)
		}
		if !got.EventDates[0].Date.Equal(day) || *got.EventDates[0].AvailableSpots != 2 {
			t.Fatalf("date round trip mismatch: %+v", got.EventDates[0])
		}
		if got.EventDates[0].SignedUpUsers == nil || got.EventDates[0].Guests == nil {
			t.Fatal("expected empty, non-nil roster slices")
		}
	})

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		_, err := s.GetEvent(context.Background(), "nope")
		if !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("GetEvent() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("duplicate create", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		e := Event("dup", day)
		e.ID = "fixed-id"
		if _, err := s.CreateEvent(ctx, e); err != nil {
			t.Fatalf("CreateEvent() error = %v", err)
		}
		if _, err := s.CreateEvent(ctx, e); !errors.Is(err, db.ErrExists) {
			t.Fatalf("second CreateEvent() error = %v, want ErrExists", err)
		}
	})

	t.Run("put checks version", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		created, err := s.CreateEvent(ctx, Event("cas", day))
		if err != nil {
			t.Fatalf("CreateEvent() error = %v", err)
		}

		first := created
		first.Name = "first writer"
		updated, err := s.PutEvent(ctx, first, created.Version)
		if err != nil {
			t.Fatalf("PutEvent() error = %v", err)
		}
		if updated.Version != 2 {
			t.Fatalf("version = %d, want 2", updated.Version)
		}

		stale := created
		stale.Name = "lost update"
		if _, err := s.PutEvent(ctx, stale, created.Version); !errors.Is(err, db.ErrVersionConflict) {
			t.Fatalf("stale PutEvent() error = %v, want ErrVersionConflict", err)
		}

		got, err := s.GetEvent(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetEvent() error = %v", err)
		}
		if got.Name != "first writer" || got.Version != 2 {
			t.Fatalf("got = %q v%d, want first writer v2", got.Name, got.Version)
		}
	})

	t.Run("put missing", func(t *testing.T) {
		s := open(t)
		e := Event("ghost", day)
		e.ID = "ghost"
		if _, err := s.PutEvent(context.Background(), e, 1); !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("PutEvent() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("query with predicate", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		for _, name := range []string{"a", "b", "c"} {
			e := Event(name, day)
			e.IsArchived = name == "b"
			if _, err := s.CreateEvent(ctx, e); err != nil {
				t.Fatalf("CreateEvent(%s) error = %v", name, err)
			}
		}

		all, err := s.QueryEvents(ctx, nil)
		if err != nil {
			t.Fatalf("QueryEvents(nil) error = %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("len(all) = %d, want 3", len(all))
		}

		live, err := s.QueryEvents(ctx, func(e *models.Event) bool { return !e.IsArchived })
		if err != nil {
			t.Fatalf("QueryEvents() error = %v", err)
		}
		if len(live) != 2 {
			t.Fatalf("len(live) = %d, want 2", len(live))
		}
		for _, e := range live {
			if e.IsArchived {
				t.Fatalf("archived event %q returned", e.Name)
			}
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		created, err := s.CreateEvent(ctx, Event("gone", day))
		if err != nil {
			t.Fatalf("CreateEvent() error = %v", err)
		}
		if err := s.DeleteEvent(ctx, created.ID); err != nil {
			t.Fatalf("DeleteEvent() error = %v", err)
		}
		if _, err := s.GetEvent(ctx, created.ID); !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("GetEvent() after delete error = %v", err)
		}
		if err := s.DeleteEvent(ctx, created.ID); !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("second DeleteEvent() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("costumes", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		for _, name := range []string{"TK-Stormtrooper", "TB-Biker Scout"} {
			if _, err := s.CreateCostume(ctx, models.Costume{Name: name}); err != nil {
				t.Fatalf("CreateCostume(%s) error = %v", name, err)
			}
		}
		if _, err := s.CreateCostume(ctx, models.Costume{Name: "TK-Stormtrooper"}); !errors.Is(err, db.ErrExists) {
			t.Fatalf("duplicate CreateCostume() error = %v, want ErrExists", err)
		}

		costumes, err := s.ListCostumes(ctx)
		if err != nil {
			t.Fatalf("ListCostumes() error = %v", err)
		}
		if len(costumes) != 2 || costumes[0].Name != "TB-Biker Scout" {
			t.Fatalf("costumes = %+v, want 2 sorted by name", costumes)
		}
		if costumes[0].ID == "" || costumes[0].CreatedAt.IsZero() {
			t.Fatalf("costume missing id or timestamp: %+v", costumes[0])
		}
	})
}
