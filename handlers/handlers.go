// Package handlers exposes the event service over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"iris-api/apperr"
	"iris-api/db"
	"iris-api/identity"
	"iris-api/notify"
	"iris-api/roster"
	"iris-api/visibility"
)

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (identity.Identity, error)
}

// Directory is the member profile store of the identity provider.
type Directory interface {
	AllProfiles(ctx context.Context) ([]identity.Profile, error)
	GetProfile(ctx context.Context, id string) (identity.Profile, error)
	UpdateProfile(ctx context.Context, id string, metadata map[string]any) (identity.Profile, error)
}

// Handlers holds the collaborators of every endpoint. Directory and Notifier
// may be nil; their endpoints then report the upstream as unavailable.
type Handlers struct {
	Store     db.Store
	Engine    *roster.Engine
	Filter    *visibility.Filter
	Groups    identity.GroupPolicy
	Verifier  TokenVerifier
	Directory Directory
	Notifier  notify.Notifier
	// Location is the zone event times of day are written in.
	Location     *time.Location
	StoreTimeout time.Duration
	Now          func() time.Time
	NewID        func() string
}

// Routes registers every endpoint on a new mux.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /api/public/event", h.HandlePublicEvent)

	private := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.RequireAuth(fn))
	}
	private("GET /api/private/events", h.HandleListEvents)
	private("GET /api/private/archivedevents", h.HandleListArchived)
	private("GET /api/private/signedupevents", h.HandleListSignedUp)
	private("GET /api/private/signedupeventsforuser", h.HandleListSignedUpForUser)
	private("GET /api/private/signedupevents.ics", h.HandleSignedUpCalendar)

	private("GET /api/private/event", h.HandleGetEvent)
	private("POST /api/private/event", h.HandleCreateEvent)
	private("PUT /api/private/event", h.HandleUpdateEvent)
	private("DELETE /api/private/event", h.HandleDeleteEvent)

	private("PUT /api/private/event/signup", h.HandleSignUp)
	private("PUT /api/private/event/signupguest", h.HandleSignUpGuest)
	private("POST /api/private/event/signout", h.HandleSignOut)
	private("POST /api/private/event/change-costume", h.HandleChangeCostume)

	private("GET /api/private/costumes", h.HandleListCostumes)
	private("POST /api/private/costumes", h.HandleCreateCostume)

	private("POST /api/private/email", h.HandleEmail)
	private("GET /api/private/users", h.HandleListUsers)
	private("GET /api/private/user", h.HandleGetUser)
	private("PATCH /api/private/user", h.HandlePatchUser)

	return mux
}

// SendJSON is a helper for sending JSON responses
func SendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Kind    apperr.Kind `json:"kind"`
}

// writeError sends err as a structured error. Causes of server errors are
// logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	kind := apperr.KindOf(err)

	msg := "internal server error"
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	} else if code == apperr.CodeUpstreamUnavailable {
		msg = "upstream timed out"
	}

	if kind == apperr.KindServer {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}
	if code == apperr.CodeVersionConflict {
		w.Header().Set("Retry-After", "1")
	}
	SendJSON(w, apperr.HTTPStatus(err), errorBody{Error: errorDetail{Code: code, Message: msg, Kind: kind}})
}

const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, "invalid JSON body", err)
	}
	return nil
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handlers) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

// storeCtx bounds a direct store call.
func (h *Handlers) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := h.StoreTimeout
	if timeout <= 0 {
		timeout = roster.DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// storeError translates store sentinels for the client.
func storeError(err error, what string) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return apperr.New(apperr.CodeNotFound, what+" not found")
	case errors.Is(err, db.ErrExists):
		return apperr.New(apperr.CodeInvalidArgument, what+" already exists")
	}
	return apperr.Upstream("store "+what, err)
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		slog.Warn("health check failed", "error", err)
		SendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	SendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
