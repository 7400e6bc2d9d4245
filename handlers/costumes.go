package handlers

import (
	"net/http"
	"strings"

	"iris-api/apperr"
	"iris-api/models"
)

// HandleListCostumes handles GET /api/private/costumes
func (h *Handlers) HandleListCostumes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()
	costumes, err := h.Store.ListCostumes(ctx)
	if err != nil {
		writeError(w, r, storeError(err, "costumes"))
		return
	}
	SendJSON(w, http.StatusOK, costumes)
}

// HandleCreateCostume handles POST /api/private/costumes
func (h *Handlers) HandleCreateCostume(w http.ResponseWriter, r *http.Request) {
	var in models.Costume
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		writeError(w, r, apperr.New(apperr.CodeInvalidArgument, "costume name is required"))
		return
	}
	in.ID = h.newID()
	in.CreatedAt = h.now().UTC()

	ctx, cancel := h.storeCtx(r.Context())
	defer cancel()
	created, err := h.Store.CreateCostume(ctx, in)
	if err != nil {
		writeError(w, r, storeError(err, "costume"))
		return
	}
	SendJSON(w, http.StatusCreated, created)
}
