package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dukerupert/roomies/internal/auth"
	"github.com/dukerupert/roomies/internal/mutation"
)

const (
	// MutationIDHeader carries a client-chosen id that makes a state change
	// safe to resend.
	MutationIDHeader    = "X-Mutation-ID"
	MutationStateHeader = "X-Mutation-State"
)

// Mutations remembers recent state changes keyed by mutation id.
type Mutations = mutation.Tracker[any]

func NewMutations(limit int) *Mutations {
	return mutation.NewTracker[any](limit)
}

// reconcile runs call once per mutation id. Ids are scoped to the caller and
// the request target, so two people reusing an id never share a result.
// Without an id, or without a tracker, call simply runs.
func reconcile(w http.ResponseWriter, r *http.Request, tracker *Mutations, optimistic string, call func(ctx context.Context) (any, error)) (any, error) {
	id := strings.TrimSpace(r.Header.Get(MutationIDHeader))
	if tracker == nil || id == "" {
		return call(r.Context())
	}
	m, err := tracker.Reconcile(r.Context(), mutationKey(r, id), nil, optimistic, call)
	w.Header().Set(MutationIDHeader, id)
	w.Header().Set(MutationStateHeader, m.State.String())
	if err != nil {
		return nil, err
	}
	return m.Result, nil
}

func mutationKey(r *http.Request, id string) string {
	personID, _ := auth.PersonID(r.Context())
	return fmt.Sprintf("%d:%s %s:%s", personID, r.Method, r.URL.Path, id)
}
