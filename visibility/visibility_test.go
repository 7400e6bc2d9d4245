package visibility

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"iris-api/apperr"
	"iris-api/db"
	"iris-api/models"
)

var asOf = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func event(name string, groups []string, dates ...time.Time) models.Event {
	e := models.Event{Name: name, GroupVisibility: groups, MaxSignupDate: asOf}
	for i, d := range dates {
		e.EventDates = append(e.EventDates, models.EventDate{ID: name + "-" + string(rune('a'+i)), Date: d})
	}
	e.Normalize()
	return e
}

func TestActiveAndArchived(t *testing.T) {
	dg := []string{"DutchGarrison"}
	cutoff := Cutoff(asOf)

	tests := []struct {
		name     string
		event    models.Event
		groups   []string
		active   bool
		archived bool
	}{
		{"upcoming", event("up", dg, asOf.AddDate(0, 0, 3)), dg, true, false},
		{"on cutoff", event("edge", dg, cutoff), dg, true, false},
		{"yesterday afternoon", event("grace", dg, asOf.Add(-20*time.Hour)), dg, true, false},
		{"all past", event("past", dg, cutoff.Add(-time.Second), asOf.AddDate(0, 0, -10)), dg, false, true},
		{"one past one upcoming", event("mixed", dg, asOf.AddDate(0, 0, -10), asOf.AddDate(0, 0, 1)), dg, true, false},
		{"other group", event("dsb", []string{"DuneSeaBase"}, asOf.AddDate(0, 0, 3)), dg, false, false},
		{"no dates", event("empty", dg), dg, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.event
			if got := Active(tt.groups, asOf)(&e); got != tt.active {
				t.Errorf("Active = %v, want %v", got, tt.active)
			}
			if got := Archived(tt.groups, asOf)(&e); got != tt.archived {
				t.Errorf("Archived = %v, want %v", got, tt.archived)
			}
		})
	}
}

func TestArchivedFlagWins(t *testing.T) {
	dg := []string{"DutchGarrison"}
	e := event("flagged", dg, asOf.AddDate(0, 0, 5))
	e.IsArchived = true

	if Active(dg, asOf)(&e) {
		t.Error("archived event listed as active")
	}
	if !Archived(dg, asOf)(&e) {
		t.Error("archived event missing from archive")
	}
	if Archived([]string{"DuneSeaBase"}, asOf)(&e) {
		t.Error("archive ignores group visibility")
	}
}

func TestSignedUp(t *testing.T) {
	dg := []string{"DutchGarrison"}
	e := event("parade", dg, asOf.AddDate(0, 0, -5), asOf.AddDate(0, 0, 5))
	e.EventDates[0].SignedUpUsers = []models.RosterEntry{{UserID: "past-only"}}
	e.EventDates[1].SignedUpUsers = []models.RosterEntry{{UserID: "u1"}}
	e.EventDates[1].CancelledUsers = []models.CancelledEntry{{UserID: "gone"}}

	tests := []struct {
		user string
		want bool
	}{
		{"u1", true},
		{"past-only", false},
		{"gone", false},
		{"stranger", false},
	}
	for _, tt := range tests {
		if got := SignedUp(tt.user, asOf)(&e); got != tt.want {
			t.Errorf("SignedUp(%q) = %v, want %v", tt.user, got, tt.want)
		}
	}

	e.IsArchived = true
	if SignedUp("u1", asOf)(&e) {
		t.Error("archived event listed as signed up")
	}
}

func TestSignedUpDateOnCutoffIsExcluded(t *testing.T) {
	e := event("edge", nil, Cutoff(asOf))
	e.EventDates[0].SignedUpUsers = []models.RosterEntry{{UserID: "u1"}}
	if SignedUp("u1", asOf)(&e) {
		t.Error("date equal to the cutoff should not count as upcoming for sign-ups")
	}
}

func TestFilterAgainstStore(t *testing.T) {
	store, err := db.NewDB("file:" + filepath.Join(t.TempDir(), "vis.db") + "?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.InitSchema(ctx); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}

	dg := []string{"DutchGarrison"}
	later := event("later", dg, asOf.AddDate(0, 0, 20))
	sooner := event("sooner", dg, asOf.AddDate(0, 0, 2))
	sooner.EventDates[0].SignedUpUsers = []models.RosterEntry{{UserID: "u1", Username: "u1"}}
	old := event("old", dg, asOf.AddDate(0, 0, -30))
	for _, e := range []models.Event{later, sooner, old} {
		if _, err := store.CreateEvent(ctx, e); err != nil {
			t.Fatalf("CreateEvent(%s): %v", e.Name, err)
		}
	}

	f := New(store, time.Second)

	active, err := f.ListActive(ctx, dg, asOf)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if names(active) != "sooner,later" {
		t.Fatalf("ListActive = %s", names(active))
	}

	archived, err := f.ListArchived(ctx, dg, asOf)
	if err != nil {
		t.Fatalf("ListArchived: %v", err)
	}
	if names(archived) != "old" {
		t.Fatalf("ListArchived = %s", names(archived))
	}

	mine, err := f.ListSignedUp(ctx, "u1", asOf)
	if err != nil {
		t.Fatalf("ListSignedUp: %v", err)
	}
	if names(mine) != "sooner" {
		t.Fatalf("ListSignedUp = %s", names(mine))
	}

	none, err := f.ListActive(ctx, nil, asOf)
	if err != nil || len(none) != 0 {
		t.Fatalf("ListActive without groups = %v, %v", none, err)
	}

	if _, err := f.ListSignedUp(ctx, "", asOf); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("ListSignedUp(\"\") error = %v", err)
	}
}

type brokenStore struct{ db.Store }

func (brokenStore) QueryEvents(context.Context, db.Predicate) ([]models.Event, error) {
	return nil, errors.New("socket closed")
}

func TestFilterStoreFailure(t *testing.T) {
	_, err := New(brokenStore{}, 0).ListActive(context.Background(), []string{"x"}, asOf)
	if apperr.CodeOf(err) != apperr.CodeUpstreamUnavailable {
		t.Fatalf("error = %v, want upstream", err)
	}
}

func TestSortByFirstDate(t *testing.T) {
	events := []models.Event{
		event("none", nil),
		event("b", nil, asOf.AddDate(0, 0, 9), asOf.AddDate(0, 0, 2)),
		event("a", nil, asOf.AddDate(0, 0, 1)),
	}
	SortByFirstDate(events)
	if got := names(events); got != "a,b,none" {
		t.Fatalf("order = %s", got)
	}
}

func names(events []models.Event) string {
	s := ""
	for i, e := range events {
		if i > 0 {
			s += ","
		}
		s += e.Name
	}
	return s
}
