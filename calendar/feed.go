package calendar

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"iris-api/models"
)

const productID = "-//iris-api//signups//EN"

// Feed renders the dates userID is signed up for as an iCalendar document.
// Times of day come from the event's start and end times, read in loc; a
// date without a start time becomes an all-day entry.
func Feed(events []models.Event, userID string, loc *time.Location, stamp time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	for _, e := range events {
		for _, d := range e.EventDates {
			i := d.IndexOf(userID)
			if i < 0 {
				continue
			}
			ve := cal.AddEvent(d.ID + "@iris-api")
			ve.SetDtStampTime(stamp)
			ve.SetSummary(e.Name)
			if desc := description(e, d.SignedUpUsers[i]); desc != "" {
				ve.SetDescription(desc)
			}
			if where := location(e); where != "" {
				ve.SetLocation(where)
			}
			if e.WebsiteURL != "" {
				ve.SetURL(e.WebsiteURL)
			}

			day := d.Date.In(loc)
			start, ok := atClock(day, e.StartTime, loc)
			if !ok {
				midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
				ve.SetAllDayStartAt(midnight)
				ve.SetAllDayEndAt(midnight.AddDate(0, 0, 1))
				continue
			}
			end, ok := atClock(day, e.EndTime, loc)
			if !ok || !end.After(start) {
				end = start.Add(time.Hour)
			}
			ve.SetStartAt(start)
			ve.SetEndAt(end)
		}
	}
	return cal.Serialize()
}

// atClock places an "HH:MM" time of day on day's calendar date.
func atClock(day time.Time, hhmm string, loc *time.Location) (time.Time, bool) {
	hhmm = strings.TrimSpace(hhmm)
	if hhmm == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), true
}

func description(e models.Event, entry models.RosterEntry) string {
	var parts []string
	if e.Description != "" {
		parts = append(parts, e.Description)
	}
	if entry.Costume != "" {
		parts = append(parts, "Costume: "+entry.Costume)
	}
	if e.GatherTime != "" {
		parts = append(parts, "Gather at "+e.GatherTime)
	}
	return strings.Join(parts, "\n")
}

func location(e models.Event) string {
	street := strings.TrimSpace(e.Street + " " + e.HouseNumber)
	city := strings.TrimSpace(e.Postcode + " " + e.City)
	switch {
	case street != "" && city != "":
		return fmt.Sprintf("%s, %s", street, city)
	case street != "":
		return street
	}
	return city
}
