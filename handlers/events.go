package handlers

import (
	"net/http"
	"strings"

	"iris-api/apperr"
	"iris-api/calendar"
	"iris-api/models"
)

// HandlePublicEvent handles GET /api/public/event?id=
func (h *Handlers) HandlePublicEvent(w http.ResponseWriter, r *http.Request) {
	h.sendEvent(w, r, r.URL.Query().Get("id"))
}

// HandleGetEvent handles GET /api/private/event. The id comes from the id
// header or query parameter.
func (h *Handlers) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get("id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	h.sendEvent(w, r, id)
}

func (h *Handlers) sendEvent(w http.ResponseWriter, r *http.Request, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		writeError(w, r, apperr.New(apperr.CodeInvalidArgument, "event id is required"))
		return
	}
	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()

	ev, err := h.Store.GetEvent(ctx, id)
	if err != nil {
		writeError(w, r, storeError(err, "event"))
		return
	}
	SendJSON(w, http.StatusOK, ev)
}

// HandleListEvents handles GET /api/private/events
func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := h.Filter.ListActive(r.Context(), h.Groups.ViewGroups(id.Permissions), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, events)
}

// HandleListArchived handles GET /api/private/archivedevents
func (h *Handlers) HandleListArchived(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := h.Filter.ListArchived(r.Context(), h.Groups.ViewGroups(id.Permissions), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, events)
}

// HandleListSignedUp handles GET /api/private/signedupevents
func (h *Handlers) HandleListSignedUp(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.sendSignedUp(w, r, id.Subject)
}

// HandleListSignedUpForUser handles GET /api/private/signedupeventsforuser
// with the user in the userid header.
func (h *Handlers) HandleListSignedUpForUser(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("userid"))
	if userID == "" {
		writeError(w, r, apperr.New(apperr.CodeInvalidArgument, "userid header is required"))
		return
	}
	h.sendSignedUp(w, r, userID)
}

func (h *Handlers) sendSignedUp(w http.ResponseWriter, r *http.Request, userID string) {
	events, err := h.Filter.ListSignedUp(r.Context(), userID, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, events)
}

// HandleSignedUpCalendar handles GET /api/private/signedupevents.ics
func (h *Handlers) HandleSignedUpCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := h.now()
	events, err := h.Filter.ListSignedUp(r.Context(), id.Subject, now)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="signedupevents.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(calendar.Feed(events, id.Subject, h.Location, now)))
}

type createEventRequest struct {
	models.Event
	Recurrence *calendar.Recurrence `json:"recurrence,omitempty"`
}

// HandleCreateEvent handles POST /api/private/event
func (h *Handlers) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ev := req.Event
	ev.ID, ev.Version = "", 0
	for i := range ev.EventDates {
		d := &ev.EventDates[i]
		d.ID = ""
		d.SignedUpUsers, d.CancelledUsers, d.Guests = nil, nil, nil
	}
	if req.Recurrence != nil {
		dates, err := calendar.ExpandDates(*req.Recurrence)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ev.EventDates = append(ev.EventDates, dates...)
	}
	ev.AssignIDs(h.newID)
	ev.Normalize()
	if err := ev.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()
	created, err := h.Store.CreateEvent(ctx, ev)
	if err != nil {
		writeError(w, r, storeError(err, "event"))
		return
	}
	SendJSON(w, http.StatusCreated, created)
}

// HandleUpdateEvent handles PUT /api/private/event. Rosters in the body are
// ignored and dates are never removed.
func (h *Handlers) HandleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in models.Event
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(in.ID) == "" {
		writeError(w, r, apperr.New(apperr.CodeInvalidArgument, "event id is required"))
		return
	}

	ev, err := h.Engine.Update(r.Context(), in.ID, func(cur *models.Event) error {
		cur.ApplyDetails(in, h.newID)
		return cur.Validate()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, ev)
}

// HandleDeleteEvent handles DELETE /api/private/event?id=
func (h *Handlers) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, r, apperr.New(apperr.CodeInvalidArgument, "event id is required"))
		return
	}
	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()
	if err := h.Store.DeleteEvent(ctx, id); err != nil {
		writeError(w, r, storeError(err, "event"))
		return
	}
	SendJSON(w, http.StatusOK, map[string]bool{"success": true})
}
