package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/roomies/internal/household"
	"github.com/dukerupert/roomies/internal/middleware"
	"github.com/dukerupert/roomies/internal/model"
)

// HouseholdHandler serves people, households and membership.
type HouseholdHandler struct {
	directory   *household.Directory
	tokenSecret []byte
	tokenTTL    time.Duration
	logger      *slog.Logger
}

func NewHouseholdHandler(d *household.Directory, tokenSecret []byte, tokenTTL time.Duration, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{directory: d, tokenSecret: tokenSecret, tokenTTL: tokenTTL, logger: logger}
}

type registerResponse struct {
	Person *model.Person `json:"person"`
	Token  string        `json:"token"`
}

// Register creates a person and returns a bearer token for them.
func (h *HouseholdHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.directory.RegisterPerson(r.Context(), req.DisplayName)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	token, err := middleware.SignToken(h.tokenSecret, p.ID, h.tokenTTL)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{Person: p, Token: token})
}

func (h *HouseholdHandler) Me(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	p, err := h.directory.Person(r.Context(), actorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	hh, err := h.directory.CreateHousehold(r.Context(), actorID, req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, hh)
}

func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	hh, err := h.directory.JoinByInviteCode(r.Context(), actorID, req.InviteCode)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

func (h *HouseholdHandler) Leave(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	res, err := h.directory.Leave(r.Context(), actorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	hh, err := h.directory.Household(r.Context(), actorID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

func (h *HouseholdHandler) Rename(w http.ResponseWriter, r *http.Request) {
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
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	hh, err := h.directory.Rename(r.Context(), actorID, id, req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

func (h *HouseholdHandler) Members(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.directory.RequireMember(r.Context(), id, actorID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	members, err := h.directory.ListMembers(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}
