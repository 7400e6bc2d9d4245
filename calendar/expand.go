// Package calendar expands recurring event schedules and exports a member's
// sign-ups as an iCalendar feed.
package calendar

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"iris-api/apperr"
	"iris-api/models"
)

const (
	// MaxDates caps the dates one recurrence may produce.
	MaxDates = 52
	// Horizon is how far past its start a recurrence is expanded.
	Horizon = 365 * 24 * time.Hour
)

// Recurrence describes repeated dates of one event.
type Recurrence struct {
	Rule           string    `json:"rule"`
	Start          time.Time `json:"start"`
	AvailableSpots *int      `json:"availableSpots,omitempty"`
}

// ExpandDates returns one event date per occurrence of r inside the horizon,
// at most MaxDates. Dates are returned without ids.
func ExpandDates(r Recurrence) ([]models.EventDate, error) {
	rule := strings.TrimSpace(r.Rule)
	rule = strings.TrimPrefix(rule, "RRULE:")
	if rule == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "recurrence rule is required")
	}
	if r.Start.IsZero() {
		return nil, apperr.New(apperr.CodeInvalidArgument, "recurrence start is required")
	}
	if r.AvailableSpots != nil && *r.AvailableSpots < 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "available spots cannot be negative")
	}

	rr, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "invalid recurrence rule", err)
	}
	rr.DTStart(r.Start)

	var set rrule.Set
	set.RRule(rr)
	times := set.Between(r.Start, r.Start.Add(Horizon), true)
	if len(times) > MaxDates {
		times = times[:MaxDates]
	}
	if len(times) == 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "recurrence produces no dates")
	}

	dates := make([]models.EventDate, 0, len(times))
	for _, t := range times {
		d := models.EventDate{Date: t, Open: true}
		if r.AvailableSpots != nil {
			n := *r.AvailableSpots
			d.AvailableSpots = &n
		}
		dates = append(dates, d)
	}
	return dates, nil
}
