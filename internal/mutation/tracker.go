// Package mutation tracks optimistic changes until the backing call settles.
//
// A mutation starts Pending with the value the caller optimistically shows,
// then becomes Confirmed with the authoritative result or Failed, in which
// case Value rolls back to the prior value.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	Pending State = iota
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrUnknown  = errors.New("unknown mutation")
	ErrSettled  = errors.New("mutation already settled")
	ErrInFlight = errors.New("mutation still pending")
)

// Mutation is a snapshot of one tracked change.
type Mutation[T any] struct {
	ID         string
	State      State
	Prior      T
	Optimistic T
	Result     T
	Err        error
	StartedAt  time.Time
	SettledAt  time.Time
}

// Value is what a caller should display for this mutation right now.
func (m Mutation[T]) Value() T {
	switch m.State {
	case Confirmed:
		return m.Result
	case Failed:
		return m.Prior
	}
	return m.Optimistic
}

// Tracker holds mutations by id. Settled mutations beyond limit are evicted
// oldest first so retried requests can be answered for a while without
// unbounded growth.
type Tracker[T any] struct {
	mu      sync.Mutex
	entries map[string]*Mutation[T]
	settled []string
	limit   int
	now     func() time.Time
}

func NewTracker[T any](limit int) *Tracker[T] {
	if limit <= 0 {
		limit = 1024
	}
	return &Tracker[T]{
		entries: make(map[string]*Mutation[T]),
		limit:   limit,
		now:     time.Now,
	}
}

// Apply records a pending mutation. An empty id gets a fresh UUID. If id is
// already tracked the existing snapshot is returned with started=false.
func (t *Tracker[T]) Apply(id string, prior, optimistic T) (m Mutation[T], started bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if existing, ok := t.entries[id]; ok {
		return *existing, false
	}
	e := &Mutation[T]{
		ID:         id,
		State:      Pending,
		Prior:      prior,
		Optimistic: optimistic,
		StartedAt:  t.now(),
	}
	t.entries[id] = e
	return *e, true
}

// Confirm settles a pending mutation with the authoritative result.
func (t *Tracker[T]) Confirm(id string, result T) (Mutation[T], error) {
	return t.settle(id, func(e *Mutation[T]) {
		e.State = Confirmed
		e.Result = result
	})
}

// Fail settles a pending mutation as failed; its Value reverts to Prior.
func (t *Tracker[T]) Fail(id string, cause error) (Mutation[T], error) {
	return t.settle(id, func(e *Mutation[T]) {
		e.State = Failed
		e.Err = cause
	})
}

func (t *Tracker[T]) settle(id string, apply func(*Mutation[T])) (Mutation[T], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return Mutation[T]{}, fmt.Errorf("%s: %w", id, ErrUnknown)
	}
	if e.State != Pending {
		return *e, fmt.Errorf("%s: %w", id, ErrSettled)
	}
	apply(e)
	e.SettledAt = t.now()

	t.settled = append(t.settled, id)
	for len(t.settled) > t.limit {
		delete(t.entries, t.settled[0])
		t.settled = t.settled[1:]
	}
	return *e, nil
}

// Get returns the snapshot for id.
func (t *Tracker[T]) Get(id string) (Mutation[T], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return Mutation[T]{}, false
	}
	return *e, true
}

// Pending returns the mutations that have not settled yet.
func (t *Tracker[T]) Pending() []Mutation[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Mutation[T]
	for _, e := range t.entries {
		if e.State == Pending {
			out = append(out, *e)
		}
	}
	return out
}

// Reconcile tracks call as a mutation and settles it with the outcome.
//
// Replaying an id that already confirmed returns the stored snapshot without
// calling again. Replaying an id that is still pending fails with
// ErrInFlight. A failed id is forgotten and run again.
func (t *Tracker[T]) Reconcile(ctx context.Context, id string, prior, optimistic T, call func(ctx context.Context) (T, error)) (Mutation[T], error) {
	m, started := t.Apply(id, prior, optimistic)
	if !started {
		switch m.State {
		case Confirmed:
			return m, nil
		case Pending:
			return m, fmt.Errorf("%s: %w", m.ID, ErrInFlight)
		}
		t.forget(m.ID)
		if m, started = t.Apply(m.ID, prior, optimistic); !started {
			return m, fmt.Errorf("%s: %w", m.ID, ErrInFlight)
		}
	}

	result, err := call(ctx)
	if err != nil {
		failed, _ := t.Fail(m.ID, err)
		return failed, err
	}
	return t.Confirm(m.ID, result)
}

func (t *Tracker[T]) forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
	for i, s := range t.settled {
		if s == id {
			t.settled = append(t.settled[:i], t.settled[i+1:]...)
			break
		}
	}
}
