package calendar

import (
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"iris-api/apperr"
	"iris-api/models"
)

var start = time.Date(2026, 11, 7, 10, 0, 0, 0, time.UTC)

func TestExpandDatesWeekly(t *testing.T) {
	spots := 3
	dates, err := ExpandDates(Recurrence{Rule: "FREQ=WEEKLY;COUNT=4", Start: start, AvailableSpots: &spots})
	if err != nil {
		t.Fatalf("ExpandDates: %v", err)
	}
	if len(dates) != 4 {
		t.Fatalf("len = %d, want 4", len(dates))
	}
	for i, d := range dates {
		want := start.AddDate(0, 0, 7*i)
		if !d.Date.Equal(want) {
			t.Errorf("date %d = %v, want %v", i, d.Date, want)
		}
		if d.AvailableSpots == nil || *d.AvailableSpots != 3 || d.ID != "" || !d.Open {
			t.Errorf("date %d = %+v", i, d)
		}
	}
	*dates[0].AvailableSpots = 99
	if *dates[1].AvailableSpots != 3 {
		t.Fatal("dates share a capacity pointer")
	}
}

func TestExpandDatesBounded(t *testing.T) {
	daily, err := ExpandDates(Recurrence{Rule: "RRULE:FREQ=DAILY", Start: start})
	if err != nil {
		t.Fatalf("ExpandDates daily: %v", err)
	}
	if len(daily) != MaxDates {
		t.Fatalf("daily len = %d, want %d", len(daily), MaxDates)
	}

	monthly, err := ExpandDates(Recurrence{Rule: "FREQ=MONTHLY", Start: start})
	if err != nil {
		t.Fatalf("ExpandDates monthly: %v", err)
	}
	last := monthly[len(monthly)-1].Date
	if last.After(start.Add(Horizon)) {
		t.Fatalf("last date %v beyond horizon", last)
	}
	if len(monthly) != 12 && len(monthly) != 13 {
		t.Fatalf("monthly len = %d", len(monthly))
	}
}

func TestExpandDatesInvalid(t *testing.T) {
	neg := -1
	tests := []Recurrence{
		{Rule: "", Start: start},
		{Rule: "FREQ=WEEKLY"},
		{Rule: "FREQ=NEVER", Start: start},
		{Rule: "FREQ=WEEKLY", Start: start, AvailableSpots: &neg},
		{Rule: "FREQ=YEARLY;UNTIL=20200101T000000Z", Start: start},
	}
	for _, r := range tests {
		if _, err := ExpandDates(r); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("ExpandDates(%+v) error = %v, want invalid argument", r, err)
		}
	}
}

func feedEvents() []models.Event {
	return []models.Event{
		{
			Name:        "Hospital visit",
			Description: "Bring candy",
			StartTime:   "14:30",
			EndTime:     "17:00",
			Street:      "Main",
			HouseNumber: "1",
			Postcode:    "1234AB",
			City:        "Utrecht",
			EventDates: []models.EventDate{
				{ID: "d1", Date: time.Date(2026, 11, 7, 0, 0, 0, 0, time.UTC), SignedUpUsers: []models.RosterEntry{{UserID: "u1", Costume: "TK"}}},
				{ID: "d2", Date: time.Date(2026, 11, 8, 0, 0, 0, 0, time.UTC), SignedUpUsers: []models.RosterEntry{{UserID: "u2"}}},
			},
		},
		{
			Name: "Con",
			EventDates: []models.EventDate{
				{ID: "d3", Date: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), SignedUpUsers: []models.RosterEntry{{UserID: "u1"}}},
			},
		},
	}
}

func TestFeed(t *testing.T) {
	amsterdam, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	out := Feed(feedEvents(), "u1", amsterdam, start)

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v\n%s", err, out)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2\n%s", len(events), out)
	}

	first := events[0]
	if got := first.GetProperty(ics.ComponentPropertySummary).Value; got != "Hospital visit" {
		t.Errorf("summary = %q", got)
	}
	if got := first.GetProperty(ics.ComponentPropertyLocation).Value; !strings.Contains(got, "Utrecht") {
		t.Errorf("location = %q", got)
	}
	startAt, err := first.GetStartAt()
	if err != nil {
		t.Fatalf("GetStartAt: %v", err)
	}
	if want := time.Date(2026, 11, 7, 14, 30, 0, 0, amsterdam); !startAt.Equal(want) {
		t.Errorf("start = %v, want %v", startAt, want)
	}
	endAt, err := first.GetEndAt()
	if err != nil {
		t.Fatalf("GetEndAt: %v", err)
	}
	if want := time.Date(2026, 11, 7, 17, 0, 0, 0, amsterdam); !endAt.Equal(want) {
		t.Errorf("end = %v, want %v", endAt, want)
	}

	if events[1].Id() != "d3@iris-api" {
		t.Errorf("uid = %q", events[1].Id())
	}
	if !strings.Contains(out, "VALUE=DATE") {
		t.Errorf("event without times is not all-day:\n%s", out)
	}
	if strings.Contains(out, "d2@iris-api") {
		t.Error("feed contains another user's date")
	}
}

func TestFeedEmpty(t *testing.T) {
	out := Feed(nil, "u1", nil, start)
	if !strings.Contains(out, "BEGIN:VCALENDAR") || strings.Contains(out, "BEGIN:VEVENT") {
		t.Fatalf("unexpected feed:\n%s", out)
	}
}

func TestAtClock(t *testing.T) {
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if _, ok := atClock(day, "", time.UTC); ok {
		t.Error("empty time parsed")
	}
	if _, ok := atClock(day, "25:00", time.UTC); ok {
		t.Error("invalid time parsed")
	}
	got, ok := atClock(day, "09:15", time.UTC)
	if !ok || got.Hour() != 9 || got.Minute() != 15 || got.Day() != 2 {
		t.Errorf("atClock = %v, %v", got, ok)
	}
}
