package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/roomies/internal/chore"
	"github.com/dukerupert/roomies/internal/view"
)

type ViewHandler struct {
	builder *view.Builder
	logger  *slog.Logger
}

func NewViewHandler(b *view.Builder, logger *slog.Logger) *ViewHandler {
	return &ViewHandler{builder: b, logger: logger}
}

// Household renders every member with the chores assigned to them. The
// ?status filter defaults to ongoing.
func (h *ViewHandler) Household(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	statuses, err := chore.ParseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	v, err := h.builder.BuildHouseholdViewByStatus(r.Context(), actorID, id, statuses...)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
