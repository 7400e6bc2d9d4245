// Package visibility decides which events a caller may list.
//
// The cutoff for all three listings is one day before asOf: dates on or
// after the cutoff count as upcoming, dates strictly before it as past.
package visibility

import (
	"context"
	"slices"
	"time"

	"iris-api/apperr"
	"iris-api/db"
	"iris-api/models"
)

// Grace is how long after its date an event still counts as upcoming.
const Grace = 24 * time.Hour

// Cutoff returns the boundary between upcoming and past dates.
func Cutoff(asOf time.Time) time.Time {
	return asOf.Add(-Grace)
}

// Active matches non-archived events visible to groups with at least one
// date on or after the cutoff.
func Active(groups []string, asOf time.Time) db.Predicate {
	cutoff := Cutoff(asOf)
	return func(e *models.Event) bool {
		if e.IsArchived || !e.VisibleTo(groups) {
			return false
		}
		return slices.ContainsFunc(e.EventDates, func(d models.EventDate) bool {
			return !d.Date.Before(cutoff)
		})
	}
}

// Archived matches events visible to groups that are explicitly archived or
// whose every date is before the cutoff. An event without dates counts as
// past.
func Archived(groups []string, asOf time.Time) db.Predicate {
	cutoff := Cutoff(asOf)
	return func(e *models.Event) bool {
		if !e.VisibleTo(groups) {
			return false
		}
		if e.IsArchived {
			return true
		}
		for _, d := range e.EventDates {
			if !d.Date.Before(cutoff) {
				return false
			}
		}
		return true
	}
}

// SignedUp matches non-archived events where userID holds an active entry on
// a date after the cutoff.
func SignedUp(userID string, asOf time.Time) db.Predicate {
	cutoff := Cutoff(asOf)
	return func(e *models.Event) bool {
		if e.IsArchived {
			return false
		}
		return slices.ContainsFunc(e.EventDates, func(d models.EventDate) bool {
			return d.Date.After(cutoff) && d.IndexOf(userID) >= 0
		})
	}
}

// Filter runs the listing predicates against a store.
type Filter struct {
	store   db.Store
	timeout time.Duration
}

// New creates a Filter. Queries are bounded by timeout when it is positive.
func New(store db.Store, timeout time.Duration) *Filter {
	return &Filter{store: store, timeout: timeout}
}

func (f *Filter) ListActive(ctx context.Context, groups []string, asOf time.Time) ([]models.Event, error) {
	return f.query(ctx, Active(groups, asOf))
}

func (f *Filter) ListArchived(ctx context.Context, groups []string, asOf time.Time) ([]models.Event, error) {
	return f.query(ctx, Archived(groups, asOf))
}

func (f *Filter) ListSignedUp(ctx context.Context, userID string, asOf time.Time) ([]models.Event, error) {
	if userID == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "user id is required")
	}
	return f.query(ctx, SignedUp(userID, asOf))
}

func (f *Filter) query(ctx context.Context, match db.Predicate) ([]models.Event, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	events, err := f.store.QueryEvents(ctx, match)
	if err != nil {
		return nil, apperr.Upstream("query events", err)
	}
	SortByFirstDate(events)
	return events, nil
}

// SortByFirstDate orders events by their earliest date, undated events last.
// Ties keep store order.
func SortByFirstDate(events []models.Event) {
	slices.SortStableFunc(events, func(a, b models.Event) int {
		ta, oka := firstDate(a)
		tb, okb := firstDate(b)
		switch {
		case !oka && !okb:
			return 0
		case !oka:
			return 1
		case !okb:
			return -1
		}
		return ta.Compare(tb)
	})
}

func firstDate(e models.Event) (time.Time, bool) {
	if len(e.EventDates) == 0 {
		return time.Time{}, false
	}
	first := e.EventDates[0].Date
	for _, d := range e.EventDates[1:] {
		if d.Date.Before(first) {
			first = d.Date
		}
	}
	return first, true
}
