package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/dukerupert/roomies/internal/thread"
)

type ThreadHandler struct {
	threads *thread.Service
	logger  *slog.Logger
}

func NewThreadHandler(s *thread.Service, logger *slog.Logger) *ThreadHandler {
	return &ThreadHandler{threads: s, logger: logger}
}

// List returns the household's threads, optionally filtered by ?chore_id.
func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	householdID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var choreID *int64
	if s := r.URL.Query().Get("chore_id"); s != "" {
		id, err := parseID(s)
		if err != nil {
			writeError(w, r, h.logger, apperr.Invalid("chore_id", "must be a positive integer"))
			return
		}
		choreID = &id
	}

	threads, err := h.threads.ListThreads(r.Context(), actorID, householdID, choreID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (h *ThreadHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	householdID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req struct {
		Title   string `json:"title"`
		ChoreID *int64 `json:"chore_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.threads.CreateThread(r.Context(), actorID, householdID, req.ChoreID, req.Title)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *ThreadHandler) Messages(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	messages, err := h.threads.ListMessages(r.Context(), actorID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *ThreadHandler) Post(w http.ResponseWriter, r *http.Request) {
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
		Body string `json:"body"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.threads.PostMessage(r.Context(), actorID, id, req.Body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}
