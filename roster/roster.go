// Package roster implements the sign-up state machine for event dates.
//
// Every operation is one transition over the whole event document: load,
// validate and mutate, then write back conditionally on the version that was
// loaded. Writers for the same event are serialized inside the process, and
// the conditional write catches writers in other processes; on conflict the
// transition is re-applied to a fresh read, a bounded number of times.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"iris-api/apperr"
	"iris-api/db"
	"iris-api/models"
)

const (
	DefaultMaxRetries = 5
	DefaultTimeout    = 5 * time.Second
)

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	Now        func() time.Time
	MaxRetries int
	Timeout    time.Duration
	Tracer     trace.Tracer
}

// Engine applies roster transitions to events held in a db.Store.
type Engine struct {
	store      db.Store
	now        func() time.Time
	maxRetries int
	timeout    time.Duration
	tracer     trace.Tracer
	locks      *eventLocks
}

// New creates an Engine over store.
func New(store db.Store, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("iris-api/roster")
	}
	return &Engine{
		store:      store,
		now:        opts.Now,
		maxRetries: opts.MaxRetries,
		timeout:    opts.Timeout,
		tracer:     opts.Tracer,
		locks:      newEventLocks(),
	}
}

// Mutation changes an event in place or returns an error to abort without
// writing.
type Mutation func(*models.Event) error

// SignUpRequest describes a new roster entry.
type SignUpRequest struct {
	UserID   string
	Username string
	Costume  string
	Avatar   string
}

// CostumeChange replaces the costume, and the avatar when set, of an entry.
type CostumeChange struct {
	UserID  string
	Costume string
	Avatar  string
}

// Update runs mutate against the current event and persists the result. It
// is the single read-modify-write path used by every roster operation.
func (e *Engine) Update(ctx context.Context, eventID string, mutate Mutation) (models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	release, err := e.locks.acquire(ctx, eventID)
	if err != nil {
		return models.Event{}, apperr.Upstream("wait for event lock", err)
	}
	defer release()

	for attempt := 0; ; attempt++ {
		current, err := e.store.GetEvent(ctx, eventID)
		if err != nil {
			return models.Event{}, storeError("load event", err)
		}

		next := current
		if err := mutate(&next); err != nil {
			return models.Event{}, err
		}

		saved, err := e.store.PutEvent(ctx, next, current.Version)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, db.ErrVersionConflict) {
			return models.Event{}, storeError("save event", err)
		}
		if attempt >= e.maxRetries {
			return models.Event{}, apperr.Wrap(apperr.CodeVersionConflict,
				fmt.Sprintf("event changed during %d attempts", attempt+1), err)
		}
		slog.Debug("roster write conflict, retrying", "event_id", eventID, "attempt", attempt+1)
	}
}

// DateIDAt resolves a positional date index to the date's stable id.
func (e *Engine) DateIDAt(ctx context.Context, eventID string, index int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ev, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return "", storeError("load event", err)
	}
	if index < 0 || index >= len(ev.EventDates) {
		return "", apperr.New(apperr.CodeNotFound, fmt.Sprintf("event has no date at index %d", index))
	}
	return ev.EventDates[index].ID, nil
}

// SignUp appends a roster entry for req.UserID to the date.
func (e *Engine) SignUp(ctx context.Context, eventID, dateID string, req SignUpRequest) (ev models.Event, err error) {
	ctx, end := e.span(ctx, "roster.SignUp", eventID, dateID)
	defer func() { end(err) }()

	if blank(req.UserID) || blank(req.Username) || blank(req.Costume) {
		return models.Event{}, apperr.New(apperr.CodeInvalidArgument, "userId, username and costume are required")
	}

	ev, err = e.Update(ctx, eventID, func(ev *models.Event) error {
		now := e.now()
		d, err := findDate(ev, dateID)
		if err != nil {
			return err
		}
		if now.After(ev.MaxSignupDate) {
			return apperr.New(apperr.CodeSignupClosed, "signup deadline has passed")
		}
		if d.IndexOf(req.UserID) >= 0 {
			return apperr.New(apperr.CodeAlreadySignedUp, "user is already signed up for this date")
		}
		if d.Full() {
			return apperr.New(apperr.CodeCapacityExceeded, "no spots left on this date")
		}
		d.SignedUpUsers = append(d.SignedUpUsers, models.RosterEntry{
			Username:   req.Username,
			UserID:     req.UserID,
			SignUpDate: now,
			Costume:    req.Costume,
			Avatar:     req.Avatar,
		})
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	slog.Info("roster signup", "event_id", eventID, "date_id", dateID, "user_id", req.UserID)
	return ev, nil
}

// AddGuest appends a guest name to the date when the event allows guests.
func (e *Engine) AddGuest(ctx context.Context, eventID, dateID, guestName, actor string) (ev models.Event, err error) {
	ctx, end := e.span(ctx, "roster.AddGuest", eventID, dateID)
	defer func() { end(err) }()

	guestName = strings.TrimSpace(guestName)
	if guestName == "" {
		return models.Event{}, apperr.New(apperr.CodeInvalidArgument, "guestName is required")
	}

	ev, err = e.Update(ctx, eventID, func(ev *models.Event) error {
		d, err := findDate(ev, dateID)
		if err != nil {
			return err
		}
		if e.now().After(ev.MaxSignupDate) {
			return apperr.New(apperr.CodeSignupClosed, "signup deadline has passed")
		}
		if !ev.CanRegisterGuests {
			return apperr.New(apperr.CodeGuestsNotAllowed, "event does not accept guests")
		}
		d.Guests = append(d.Guests, guestName)
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	slog.Info("roster guest added", "event_id", eventID, "date_id", dateID, "actor", actor)
	return ev, nil
}

// SignOut moves the actor's own entry to the cancelled list with reason.
func (e *Engine) SignOut(ctx context.Context, eventID, dateID, userID, reason, actor string) (ev models.Event, err error) {
	ctx, end := e.span(ctx, "roster.SignOut", eventID, dateID)
	defer func() { end(err) }()

	if err := selfService(userID, actor); err != nil {
		return models.Event{}, err
	}
	if blank(reason) {
		return models.Event{}, apperr.New(apperr.CodeInvalidArgument, "signoutReason is required")
	}

	ev, err = e.Update(ctx, eventID, func(ev *models.Event) error {
		d, err := findDate(ev, dateID)
		if err != nil {
			return err
		}
		i := d.IndexOf(userID)
		if i < 0 {
			return apperr.New(apperr.CodeNotFound, "user is not signed up for this date")
		}
		entry := d.SignedUpUsers[i]
		d.SignedUpUsers = append(d.SignedUpUsers[:i:i], d.SignedUpUsers[i+1:]...)
		d.CancelledUsers = append(d.CancelledUsers, models.CancelledEntry{
			Username:      entry.Username,
			UserID:        entry.UserID,
			SignUpDate:    entry.SignUpDate,
			Costume:       entry.Costume,
			Avatar:        entry.Avatar,
			SignoutReason: reason,
		})
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	slog.Info("roster signout", "event_id", eventID, "date_id", dateID, "user_id", userID)
	return ev, nil
}

// ChangeCostume edits the actor's own entry in place.
func (e *Engine) ChangeCostume(ctx context.Context, eventID, dateID string, change CostumeChange, actor string) (ev models.Event, err error) {
	ctx, end := e.span(ctx, "roster.ChangeCostume", eventID, dateID)
	defer func() { end(err) }()

	if err := selfService(change.UserID, actor); err != nil {
		return models.Event{}, err
	}
	if blank(change.Costume) {
		return models.Event{}, apperr.New(apperr.CodeInvalidArgument, "costume is required")
	}

	ev, err = e.Update(ctx, eventID, func(ev *models.Event) error {
		d, err := findDate(ev, dateID)
		if err != nil {
			return err
		}
		i := d.IndexOf(change.UserID)
		if i < 0 {
			return apperr.New(apperr.CodeNotFound, "user is not signed up for this date")
		}
		d.SignedUpUsers[i].Costume = change.Costume
		if change.Avatar != "" {
			d.SignedUpUsers[i].Avatar = change.Avatar
		}
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	slog.Info("roster costume changed", "event_id", eventID, "date_id", dateID, "user_id", change.UserID)
	return ev, nil
}

func (e *Engine) span(ctx context.Context, name, eventID, dateID string) (context.Context, func(error)) {
	ctx, span := e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("event_date.id", dateID),
	))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperr.CodeOf(err)))
		}
		span.End()
	}
}

func findDate(ev *models.Event, dateID string) (*models.EventDate, error) {
	d, ok := ev.DateByID(dateID)
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "event date not found")
	}
	return d, nil
}

// selfService rejects operations on another user's entry.
func selfService(userID, actor string) error {
	if blank(userID) {
		return apperr.New(apperr.CodeInvalidArgument, "userId is required")
	}
	if actor != userID {
		return apperr.New(apperr.CodeForbidden, "users may only change their own sign-up")
	}
	return nil
}

func storeError(op string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.New(apperr.CodeNotFound, "event not found")
	}
	return apperr.Upstream(op, err)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
