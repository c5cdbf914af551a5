package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/dukerupert/roomies/internal/assignment"
	"github.com/dukerupert/roomies/internal/blob"
	"github.com/dukerupert/roomies/internal/chore"
	"github.com/dukerupert/roomies/internal/model"
	"github.com/dukerupert/roomies/internal/recurrence"
)

type ChoreHandler struct {
	chores    *chore.Repository
	ledger    *assignment.Ledger
	mutations *Mutations
	logger    *slog.Logger
}

func NewChoreHandler(chores *chore.Repository, ledger *assignment.Ledger, mutations *Mutations, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{chores: chores, ledger: ledger, mutations: mutations, logger: logger}
}

type choreRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date"`
	RepeatMask  int     `json:"repeat_mask"`
	// RRule may be sent instead of RepeatMask by calendar clients.
	RRule       string  `json:"rrule"`
	AssigneeIDs []int64 `json:"assignee_ids"`
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	householdID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req choreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RRule != "" {
		mask, err := recurrence.ParseRRule(req.RRule)
		if err != nil {
			writeError(w, r, h.logger, apperr.Invalid("rrule", err.Error()))
			return
		}
		req.RepeatMask = mask
	}

	c, err := h.chores.Create(r.Context(), actorID, chore.NewChore{
		HouseholdID: householdID,
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
		RepeatMask:  req.RepeatMask,
		AssigneeIDs: req.AssigneeIDs,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// List returns the household's chores. ?status=ongoing,completed selects
// statuses; the default is ongoing.
func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	householdID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	statuses, err := chore.ParseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	chores, err := h.chores.ListChores(r.Context(), actorID, householdID, statuses...)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	c, err := h.chores.Get(r.Context(), actorID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.chores.Delete(r.Context(), actorID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Complete accepts either JSON {"completed_at", "image_url"} or a multipart
// form with an "image" file and optional "completed_at".
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var call func(ctx context.Context) (any, error)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, blob.MaxImageBytes+maxBodyBytes)
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
			return
		}
		completedAt, err := parseCompletedAt(r.FormValue("completed_at"))
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		var proof *chore.Proof
		file, header, err := r.FormFile("image")
		switch {
		case err == nil:
			defer file.Close()
			proof = &chore.Proof{Filename: header.Filename, ContentType: header.Header.Get("Content-Type"), Body: file}
		case !errors.Is(err, http.ErrMissingFile):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid image upload"})
			return
		}
		call = func(ctx context.Context) (any, error) {
			return h.chores.CompleteWithProof(ctx, actorID, id, completedAt, proof)
		}
	} else {
		var req struct {
			CompletedAt string  `json:"completed_at"`
			ImageURL    *string `json:"image_url"`
		}
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		completedAt, err := parseCompletedAt(req.CompletedAt)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		call = func(ctx context.Context) (any, error) {
			return h.chores.MarkCompleted(ctx, actorID, id, completedAt, req.ImageURL)
		}
	}

	c, err := reconcile(w, r, h.mutations, string(model.ChoreCompleted), call)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Pass(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	c, err := reconcile(w, r, h.mutations, string(model.ChorePassed), func(ctx context.Context) (any, error) {
		return h.chores.MarkPassed(ctx, actorID, id, req.Reason)
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req struct {
		PersonIDs []int64 `json:"person_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.ledger.Assign(r.Context(), actorID, id, req.PersonIDs); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.Assignees(w, r)
}

func (h *ChoreHandler) Assignees(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	people, err := h.ledger.AssignmentsFor(r.Context(), actorID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

// PersonChores lists the chores a person is assigned to. Without ?status
// every chore is returned.
func (h *ChoreHandler) PersonChores(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	personID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	statuses, err := chore.ParseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	chores, err := h.ledger.ChoresFor(r.Context(), actorID, personID, statuses...)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, chores)
}

func parseCompletedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperr.Invalid("completed_at", "must be an RFC 3339 timestamp")
	}
	return t, nil
}
