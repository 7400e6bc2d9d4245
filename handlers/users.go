package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"iris-api/apperr"
	"iris-api/identity"
	"iris-api/notify"
)

func (h *Handlers) directory() (Directory, error) {
	if h.Directory == nil {
		return nil, apperr.New(apperr.CodeUpstreamUnavailable, "user directory is not configured")
	}
	return h.Directory, nil
}

func directoryError(err error) error {
	if errors.Is(err, identity.ErrProfileNotFound) {
		return apperr.New(apperr.CodeNotFound, "user not found")
	}
	return apperr.Upstream("user directory", err)
}

// HandleListUsers handles GET /api/private/users
func (h *Handlers) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	dir, err := h.directory()
	if err != nil {
		writeError(w, r, err)
		return
	}
	profiles, err := dir.AllProfiles(r.Context())
	if err != nil {
		writeError(w, r, directoryError(err))
		return
	}
	SendJSON(w, http.StatusOK, profiles)
}

// HandleGetUser handles GET /api/private/user with the id in the userid
// header.
func (h *Handlers) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("userid"))
	if userID == "" {
		writeError(w, r, apperr.New(apperr.CodeInvalidArgument, "userid header is required"))
		return
	}
	dir, err := h.directory()
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := dir.GetProfile(r.Context(), identity.NormalizeUserID(userID))
	if err != nil {
		writeError(w, r, directoryError(err))
		return
	}
	SendJSON(w, http.StatusOK, p)
}

type patchUserRequest struct {
	User struct {
		UserID       string         `json:"user_id"`
		UserMetadata map[string]any `json:"user_metadata"`
	} `json:"user"`
}

// HandlePatchUser handles PATCH /api/private/user. Callers may only edit
// their own metadata.
func (h *Handlers) HandlePatchUser(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req patchUserRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target := identity.NormalizeUserID(strings.TrimSpace(req.User.UserID))
	if target == "" {
		writeError(w, r, apperr.New(apperr.CodeInvalidArgument, "user.user_id is required"))
		return
	}
	if target != id.Subject {
		writeError(w, r, apperr.New(apperr.CodeForbidden, "users may only edit their own profile"))
		return
	}
	dir, err := h.directory()
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := dir.UpdateProfile(r.Context(), target, req.User.UserMetadata)
	if err != nil {
		writeError(w, r, directoryError(err))
		return
	}
	SendJSON(w, http.StatusOK, p)
}

type emailRequest struct {
	ID   string `json:"id"`
	HTML string `json:"html"`
}

// HandleEmail handles POST /api/private/email: it announces an event to
// every member who may sign up for it.
func (h *Handlers) HandleEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, r, apperr.New(apperr.CodeInvalidArgument, "event id is required"))
		return
	}

	ctx, cancel := h.storeCtx(r.Context())
	ev, err := h.Store.GetEvent(ctx, req.ID)
	cancel()
	if err != nil {
		writeError(w, r, storeError(err, "event"))
		return
	}

	dir, err := h.directory()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Notifier == nil {
		writeError(w, r, apperr.New(apperr.CodeUpstreamUnavailable, "mail relay is not configured"))
		return
	}
	profiles, err := dir.AllProfiles(r.Context())
	if err != nil {
		writeError(w, r, directoryError(err))
		return
	}

	recipients := notify.Recipients(profiles, ev, h.Groups)
	if len(recipients) == 0 {
		slog.Info("event announcement has no recipients", "event_id", ev.ID)
		SendJSON(w, http.StatusOK, map[string]int{"sent": 0})
		return
	}
	err = h.Notifier.SendBulk(r.Context(), notify.Message{
		EventID:     ev.ID,
		Title:       ev.Name,
		Description: ev.Description,
		HTML:        req.HTML,
		Recipients:  recipients,
	})
	if err != nil {
		writeError(w, r, apperr.Upstream("mail relay", err))
		return
	}
	slog.Info("event announcement sent", "event_id", ev.ID, "recipients", len(recipients))
	SendJSON(w, http.StatusOK, map[string]int{"sent": len(recipients)})
}
