package handlers

import (
	"context"
	"net/http"
	"strings"

	"iris-api/apperr"
	"iris-api/roster"
)

// dateRef addresses one event date. Clients send the stable eventDateId;
// older clients send a positional index under one of two names.
type dateRef struct {
	EventID         string `json:"eventId"`
	EventDateID     string `json:"eventDateId"`
	EventDatesIndex *int   `json:"eventDatesIndex,omitempty"`
	EventDateIndex  *int   `json:"eventDateIndex,omitempty"`
}

func (h *Handlers) resolveDate(ctx context.Context, ref dateRef) (string, error) {
	if strings.TrimSpace(ref.EventID) == "" {
		return "", apperr.New(apperr.CodeInvalidArgument, "eventId is required")
	}
	if ref.EventDateID != "" {
		return ref.EventDateID, nil
	}
	idx := ref.EventDatesIndex
	if idx == nil {
		idx = ref.EventDateIndex
	}
	if idx == nil {
		return "", apperr.New(apperr.CodeInvalidArgument, "eventDateId is required")
	}
	return h.Engine.DateIDAt(ctx, ref.EventID, *idx)
}

type signUpRequest struct {
	dateRef
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Costume  string `json:"costume"`
	Avatar   string `json:"avatar"`
}

// HandleSignUp handles PUT /api/private/event/signup. The roster entry
// belongs to the verified caller.
func (h *Handlers) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req signUpRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UserID != "" && req.UserID != id.Subject {
		writeError(w, r, apperr.New(apperr.CodeForbidden, "users may only sign themselves up"))
		return
	}
	dateID, err := h.resolveDate(r.Context(), req.dateRef)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ev, err := h.Engine.SignUp(r.Context(), req.EventID, dateID, roster.SignUpRequest{
		UserID:   id.Subject,
		Username: req.Username,
		Costume:  req.Costume,
		Avatar:   req.Avatar,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, ev)
}

type guestRequest struct {
	dateRef
	GuestName string `json:"guestName"`
}

// HandleSignUpGuest handles PUT /api/private/event/signupguest
func (h *Handlers) HandleSignUpGuest(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req guestRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	dateID, err := h.resolveDate(r.Context(), req.dateRef)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ev, err := h.Engine.AddGuest(r.Context(), req.EventID, dateID, req.GuestName, id.Subject)
	if err != nil {
		writeError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, ev)
}

type signOutRequest struct {
	dateRef
	UserID        string `json:"userId"`
	SignoutReason string `json:"signoutReason"`
}

// HandleSignOut handles POST /api/private/event/signout
func (h *Handlers) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req signOutRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	dateID, err := h.resolveDate(r.Context(), req.dateRef)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ev, err := h.Engine.SignOut(r.Context(), req.EventID, dateID, req.UserID, req.SignoutReason, id.Subject)
	if err != nil {
		writeError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, ev)
}

type changeCostumeRequest struct {
	dateRef
	UserID  string `json:"userId"`
	Costume string `json:"costume"`
	// Legacy clients send the new costume under this name.
	ChangedCostume string `json:"changedCustome"`
	Avatar         string `json:"avatar"`
}

// HandleChangeCostume handles POST /api/private/event/change-costume
func (h *Handlers) HandleChangeCostume(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req changeCostumeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Costume == "" {
		req.Costume = req.ChangedCostume
	}
	dateID, err := h.resolveDate(r.Context(), req.dateRef)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ev, err := h.Engine.ChangeCostume(r.Context(), req.EventID, dateID, roster.CostumeChange{
		UserID:  req.UserID,
		Costume: req.Costume,
		Avatar:  req.Avatar,
	}, id.Subject)
	if err != nil {
		writeError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, ev)
}
