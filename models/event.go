package models

import (
	"slices"
	"strings"

	"iris-api/apperr"
)

// DateByID returns a pointer to the event date with the given id, so callers
// can mutate it in place.
func (e *Event) DateByID(id string) (*EventDate, bool) {
	for i := range e.EventDates {
		if e.EventDates[i].ID == id {
			return &e.EventDates[i], true
		}
	}
	return nil, false
}

// VisibleTo reports whether the event shares at least one group with groups.
func (e *Event) VisibleTo(groups []string) bool {
	for _, g := range e.GroupVisibility {
		if slices.Contains(groups, g) {
			return true
		}
	}
	return false
}

// Normalize replaces nil slices with empty ones so documents always encode
// arrays.
func (e *Event) Normalize() {
	if e.GroupVisibility == nil {
		e.GroupVisibility = []string{}
	}
	if e.EventDates == nil {
		e.EventDates = []EventDate{}
	}
	for i := range e.EventDates {
		d := &e.EventDates[i]
		if d.SignedUpUsers == nil {
			d.SignedUpUsers = []RosterEntry{}
		}
		if d.CancelledUsers == nil {
			d.CancelledUsers = []CancelledEntry{}
		}
		if d.Guests == nil {
			d.Guests = []string{}
		}
	}
}

// Validate checks the fields an event needs before it is first stored.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return apperr.New(apperr.CodeInvalidArgument, "event name is required")
	}
	if len(e.EventDates) == 0 {
		return apperr.New(apperr.CodeInvalidArgument, "event needs at least one date")
	}
	for _, d := range e.EventDates {
		if d.Date.IsZero() {
			return apperr.New(apperr.CodeInvalidArgument, "event date is required")
		}
		if d.AvailableSpots != nil && *d.AvailableSpots < 0 {
			return apperr.New(apperr.CodeInvalidArgument, "available spots cannot be negative")
		}
	}
	if e.MaxSignupDate.IsZero() {
		return apperr.New(apperr.CodeInvalidArgument, "max signup date is required")
	}
	return nil
}

// AssignIDs gives every date without an id a fresh one.
func (e *Event) AssignIDs(newID func() string) {
	for i := range e.EventDates {
		if e.EventDates[i].ID == "" {
			e.EventDates[i].ID = newID()
		}
	}
}

// ApplyDetails copies the descriptive, logistics and policy fields of in onto
// e. Dates in in that match an existing id update its date, capacity and open
// flag; dates without an id are appended. Rosters are never taken from in and
// existing dates are never removed.
func (e *Event) ApplyDetails(in Event, newID func() string) {
	e.Name = in.Name
	e.Description = in.Description
	e.GroupVisibility = slices.Clone(in.GroupVisibility)
	if !in.MaxSignupDate.IsZero() {
		e.MaxSignupDate = in.MaxSignupDate
	}
	e.GatherTime = in.GatherTime
	e.StartTime = in.StartTime
	e.EndTime = in.EndTime
	e.EventCoordinator = in.EventCoordinator
	e.Street = in.Street
	e.HouseNumber = in.HouseNumber
	e.Postcode = in.Postcode
	e.City = in.City
	e.ForumURL = in.ForumURL
	e.FacebookEvent = in.FacebookEvent
	e.WebsiteURL = in.WebsiteURL
	e.PubliclyAccessible = in.PubliclyAccessible
	e.DressingroomAvailable = in.DressingroomAvailable
	e.TravelRestitution = in.TravelRestitution
	e.Parking = in.Parking
	e.ParkingRestitution = in.ParkingRestitution
	e.Lunch = in.Lunch
	e.Drinks = in.Drinks
	e.BlastersAllowed = in.BlastersAllowed
	e.CanRegisterGuests = in.CanRegisterGuests
	e.IsArchived = in.IsArchived

	for _, nd := range in.EventDates {
		if nd.ID != "" {
			if d, ok := e.DateByID(nd.ID); ok {
				if !nd.Date.IsZero() {
					d.Date = nd.Date
				}
				d.AvailableSpots = nd.AvailableSpots
				d.Open = nd.Open
			}
			continue
		}
		if nd.Date.IsZero() {
			continue
		}
		e.EventDates = append(e.EventDates, EventDate{
			ID:             newID(),
			Date:           nd.Date,
			AvailableSpots: nd.AvailableSpots,
			Open:           nd.Open,
		})
	}
	e.Normalize()
}

// IndexOf returns the position of userID in the active roster, or -1.
func (d *EventDate) IndexOf(userID string) int {
	return slices.IndexFunc(d.SignedUpUsers, func(r RosterEntry) bool {
		return r.UserID == userID
	})
}

// Full reports whether a capacity is set and already reached.
func (d *EventDate) Full() bool {
	return d.AvailableSpots != nil && len(d.SignedUpUsers) >= *d.AvailableSpots
}

// RemainingSpots returns nil for unlimited dates.
func (d *EventDate) RemainingSpots() *int {
	if d.AvailableSpots == nil {
		return nil
	}
	n := max(*d.AvailableSpots-len(d.SignedUpUsers), 0)
	return &n
}
