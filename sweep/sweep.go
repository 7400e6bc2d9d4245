// Package sweep runs scheduled maintenance: it archives events whose dates
// are long past and prunes expired cache entries.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"iris-api/db"
	"iris-api/models"
	"iris-api/roster"
)

// Pruner drops expired cache entries.
type Pruner interface {
	PruneCache() int
}

type Options struct {
	ArchiveAfter time.Duration
	Now          func() time.Time
	Pruners      []Pruner
}

// Sweeper archives events through the roster engine so the write goes
// through the same version check as sign-ups.
type Sweeper struct {
	store        db.Store
	engine       *roster.Engine
	archiveAfter time.Duration
	now          func() time.Time
	pruners      []Pruner
}

func New(store db.Store, engine *roster.Engine, opts Options) *Sweeper {
	if opts.ArchiveAfter <= 0 {
		opts.ArchiveAfter = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sweeper{
		store:        store,
		engine:       engine,
		archiveAfter: opts.ArchiveAfter,
		now:          opts.Now,
		pruners:      opts.Pruners,
	}
}

// Result summarizes one sweep.
type Result struct {
	Archived int
	Pruned   int
}

var errNothingToDo = errors.New("event no longer eligible")

// Run performs one sweep. A failure on one event is logged and does not stop
// the others.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var res Result
	cutoff := s.now().Add(-s.archiveAfter)

	stale, err := s.store.QueryEvents(ctx, func(e *models.Event) bool {
		return eligible(e, cutoff)
	})
	if err != nil {
		return res, fmt.Errorf("query stale events: %w", err)
	}

	for _, e := range stale {
		_, err := s.engine.Update(ctx, e.ID, func(cur *models.Event) error {
			if !eligible(cur, cutoff) {
				return errNothingToDo
			}
			cur.IsArchived = true
			return nil
		})
		switch {
		case err == nil:
			res.Archived++
		case errors.Is(err, errNothingToDo):
		default:
			slog.Warn("archive event failed", "event_id", e.ID, "error", err)
		}
	}

	for _, p := range s.pruners {
		res.Pruned += p.PruneCache()
	}
	slog.Info("sweep finished", "archived", res.Archived, "pruned", res.Pruned)
	return res, nil
}

// Start runs the sweep on a cron schedule in loc. The returned func stops
// the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Start(schedule string, loc *time.Location) (stop func(), err error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(schedule, func() {
		if _, err := s.Run(context.Background()); err != nil {
			slog.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}

func eligible(e *models.Event, cutoff time.Time) bool {
	if e.IsArchived || len(e.EventDates) == 0 {
		return false
	}
	for _, d := range e.EventDates {
		if !d.Date.Before(cutoff) {
			return false
		}
	}
	return true
}
