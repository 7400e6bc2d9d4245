package models

import "time"

// RosterEntry is one user's active participation in one event date.
type RosterEntry struct {
	Username   string    `json:"username" bson:"username"`
	UserID     string    `json:"userId" bson:"userId"`
	SignUpDate time.Time `json:"signUpDate" bson:"signUpDate"`
	Costume    string    `json:"costume" bson:"costume"`
	Avatar     string    `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

// CancelledEntry is a roster entry that was moved out of the active roster.
type CancelledEntry struct {
	Username      string    `json:"username" bson:"username"`
	UserID        string    `json:"userId" bson:"userId"`
	SignUpDate    time.Time `json:"signUpDate" bson:"signUpDate"`
	Costume       string    `json:"costume" bson:"costume"`
	Avatar        string    `json:"avatar,omitempty" bson:"avatar,omitempty"`
	SignoutReason string    `json:"signoutReason" bson:"signoutReason"`
}

// EventDate is one scheduled occurrence of an event with its own roster.
// A nil AvailableSpots means unlimited capacity.
type EventDate struct {
	ID             string           `json:"id" bson:"id"`
	Date           time.Time        `json:"date" bson:"date"`
	AvailableSpots *int             `json:"availableSpots,omitempty" bson:"availableSpots,omitempty"`
	SignedUpUsers  []RosterEntry    `json:"signedUpUsers" bson:"signedUpUsers"`
	CancelledUsers []CancelledEntry `json:"cancelledUsers" bson:"cancelledUsers"`
	Guests         []string         `json:"guests" bson:"guests"`
	Open           bool             `json:"open" bson:"open"`
}

// Event is the unit of persistence and of write atomicity.
type Event struct {
	ID              string      `json:"id" bson:"_id"`
	Version         int64       `json:"version" bson:"version"`
	Name            string      `json:"name" bson:"name"`
	Description     string      `json:"description" bson:"description"`
	GroupVisibility []string    `json:"groupVisibility" bson:"groupVisibility"`
	EventDates      []EventDate `json:"eventDates" bson:"eventDates"`
	MaxSignupDate   time.Time   `json:"maxSignupDate" bson:"maxSignupDate"`

	GatherTime       string `json:"gatherTime" bson:"gatherTime"`
	StartTime        string `json:"startTime" bson:"startTime"`
	EndTime          string `json:"endTime" bson:"endTime"`
	EventCoordinator string `json:"eventCoordinator,omitempty" bson:"eventCoordinator,omitempty"`
	Street           string `json:"street,omitempty" bson:"street,omitempty"`
	HouseNumber      string `json:"houseNumber,omitempty" bson:"houseNumber,omitempty"`
	Postcode         string `json:"postcode,omitempty" bson:"postcode,omitempty"`
	City             string `json:"city" bson:"city"`
	ForumURL         string `json:"forumUrl,omitempty" bson:"forumUrl,omitempty"`
	FacebookEvent    string `json:"facebookEvent,omitempty" bson:"facebookEvent,omitempty"`
	WebsiteURL       string `json:"websiteUrl,omitempty" bson:"websiteUrl,omitempty"`

	PubliclyAccessible    bool `json:"publiclyAccessible" bson:"publiclyAccessible"`
	DressingroomAvailable bool `json:"dressingroomAvailable" bson:"dressingroomAvailable"`
	TravelRestitution     bool `json:"travelRestitution" bson:"travelRestitution"`
	Parking               bool `json:"parking" bson:"parking"`
	ParkingRestitution    bool `json:"parkingRestitution" bson:"parkingRestitution"`
	Lunch                 bool `json:"lunch" bson:"lunch"`
	Drinks                bool `json:"drinks" bson:"drinks"`
	BlastersAllowed       bool `json:"blastersAllowed" bson:"blastersAllowed"`
	CanRegisterGuests     bool `json:"canRegisterGuests" bson:"canRegisterGuests"`
	IsArchived            bool `json:"isArchived" bson:"isArchived"`
}

// Costume is an entry in the costume registry.
type Costume struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}
