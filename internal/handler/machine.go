package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/roomies/internal/machine"
	"github.com/dukerupert/roomies/internal/model"
)

type MachineHandler struct {
	machines  *machine.Service
	mutations *Mutations
	logger    *slog.Logger
}

func NewMachineHandler(s *machine.Service, mutations *Mutations, logger *slog.Logger) *MachineHandler {
	return &MachineHandler{machines: s, mutations: mutations, logger: logger}
}

func (h *MachineHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	householdID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	machines, err := h.machines.List(r.Context(), actorID, householdID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, machines)
}

func (h *MachineHandler) Create(w http.ResponseWriter, r *http.Request) {
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
		Name     string  `json:"name"`
		ImageURL *string `json:"image_url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.machines.Create(r.Context(), actorID, householdID, req.Name, req.ImageURL)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MachineHandler) Occupy(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, model.MachineBusy, h.machines.Occupy)
}

func (h *MachineHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, model.MachineAvailable, h.machines.Finish)
}

func (h *MachineHandler) toggle(w http.ResponseWriter, r *http.Request, to model.MachineStatus, apply func(ctx context.Context, actorID, machineID int64) (*model.Machine, error)) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	m, err := reconcile(w, r, h.mutations, string(to), func(ctx context.Context) (any, error) {
		return apply(ctx, actorID, id)
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
