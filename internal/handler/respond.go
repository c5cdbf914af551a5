package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/dukerupert/roomies/internal/auth"
	"github.com/dukerupert/roomies/internal/middleware"
	"github.com/dukerupert/roomies/internal/mutation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func parseIDParam(r *http.Request) (int64, error) {
	return parseID(r.PathValue("id"))
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

// actor returns the authenticated person or writes 401.
func actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := auth.PersonID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return 0, false
	}
	return id, true
}

type errorBody struct {
	Error     string              `json:"error"`
	Fields    []apperr.FieldError `json:"fields,omitempty"`
	PersonIDs []int64             `json:"person_ids,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// writeError maps service errors onto HTTP statuses. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	body := errorBody{Error: err.Error(), RequestID: middleware.RequestID(r.Context())}
	status := http.StatusInternalServerError

	var verr *apperr.ValidationError
	var xerr *apperr.CrossHouseholdError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body.Error = "validation failed"
		body.Fields = verr.Fields
	case errors.As(err, &xerr):
		status = http.StatusUnprocessableEntity
		body.PersonIDs = xerr.PersonIDs
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrNotMember):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, mutation.ErrInFlight):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		body.Error = "backing store timeout"
	case errors.Is(err, apperr.ErrTransient):
		status = http.StatusServiceUnavailable
		body.Error = "backing store unavailable"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}
