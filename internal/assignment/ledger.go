// Package assignment maintains which people are responsible for which chores.
package assignment

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/dukerupert/roomies/internal/event"
	"github.com/dukerupert/roomies/internal/household"
	"github.com/dukerupert/roomies/internal/model"
	"github.com/dukerupert/roomies/internal/store"
)

// EmptyAssigneesMessage is the validation message for an empty assignee set.
const EmptyAssigneesMessage = "assign at least one person"

type Ledger struct {
	db          *sql.DB
	directory   *household.Directory
	chores      *store.ChoreStore
	assignments *store.AssignmentStore
	people      *store.PersonStore
	policy      store.CallPolicy
	events      event.Publisher
	logger      *slog.Logger
}

func NewLedger(db *sql.DB, directory *household.Directory, policy store.CallPolicy, events event.Publisher, logger *slog.Logger) *Ledger {
	if events == nil {
		events = event.Discard
	}
	return &Ledger{
		db:          db,
		directory:   directory,
		chores:      store.NewChoreStore(db),
		assignments: store.NewAssignmentStore(db),
		people:      store.NewPersonStore(db),
		policy:      policy,
		events:      events,
		logger:      logger,
	}
}

// Normalize drops duplicate and non-positive ids, keeping first-seen order.
func Normalize(personIDs []int64) []int64 {
	out := make([]int64, 0, len(personIDs))
	for _, id := range personIDs {
		if id <= 0 || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Assign adds personIDs to the chore. Re-assigning someone already on the
// chore is a no-op. Every id must belong to the chore's household, otherwise
// nothing is written and a *apperr.CrossHouseholdError is returned.
func (l *Ledger) Assign(ctx context.Context, actorID, choreID int64, personIDs []int64) error {
	ids := Normalize(personIDs)
	if len(ids) == 0 {
		return apperr.Invalid("assignees", EmptyAssigneesMessage)
	}

	c, err := l.chore(ctx, choreID)
	if err != nil {
		return err
	}
	if err := l.directory.RequireMember(ctx, c.HouseholdID, actorID); err != nil {
		return err
	}

	err = store.Call(ctx, l.policy, func(ctx context.Context) error {
		return store.InTx(ctx, l.db, func(tx *sql.Tx) error {
			return l.AssignInTx(ctx, tx, c, ids)
		})
	})
	if err != nil {
		return fmt.Errorf("assign chore %d: %w", choreID, err)
	}

	l.logger.Info("chore assigned", "chore_id", choreID, "people", ids)
	l.events.Publish(event.Event{HouseholdID: c.HouseholdID, Entity: "chore", Action: "assigned", ID: choreID})
	return nil
}

// AssignInTx writes the assignments inside an existing transaction. It is the
// step shared by Assign and chore creation so both enforce the same
// household check.
func (l *Ledger) AssignInTx(ctx context.Context, tx *sql.Tx, c *model.Chore, personIDs []int64) error {
	ids := Normalize(personIDs)
	if len(ids) == 0 {
		return apperr.Invalid("assignees", EmptyAssigneesMessage)
	}

	people := l.people.WithTx(tx)
	var outsiders []int64
	for _, id := range ids {
		p, err := people.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p == nil || p.HouseholdID == nil || *p.HouseholdID != c.HouseholdID {
			outsiders = append(outsiders, id)
		}
	}
	if len(outsiders) > 0 {
		return &apperr.CrossHouseholdError{HouseholdID: c.HouseholdID, PersonIDs: outsiders}
	}

	return l.assignments.WithTx(tx).Add(ctx, c.ID, ids)
}

// AssignmentsFor returns the chore's assignees ordered by display name.
func (l *Ledger) AssignmentsFor(ctx context.Context, actorID, choreID int64) ([]model.Person, error) {
	c, err := l.chore(ctx, choreID)
	if err != nil {
		return nil, err
	}
	if err := l.directory.RequireMember(ctx, c.HouseholdID, actorID); err != nil {
		return nil, err
	}

	var people []model.Person
	err = store.Call(ctx, l.policy, func(ctx context.Context) error {
		var err error
		people, err = l.assignments.ListPeople(ctx, choreID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	if people == nil {
		people = []model.Person{}
	}
	return people, nil
}

// ChoresFor returns the chores personID is assigned to, ordered by due date.
// With no statuses every chore is returned. The actor must share the
// person's household.
func (l *Ledger) ChoresFor(ctx context.Context, actorID, personID int64, statuses ...model.ChoreStatus) ([]model.Chore, error) {
	hid, err := l.directory.ResolveHouseholdForPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	if hid == nil {
		return []model.Chore{}, nil
	}
	if err := l.directory.RequireMember(ctx, *hid, actorID); err != nil {
		return nil, err
	}

	var chores []model.Chore
	err = store.Call(ctx, l.policy, func(ctx context.Context) error {
		var err error
		chores, err = l.chores.ListByAssignee(ctx, personID, statuses...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list chores for person: %w", err)
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	return chores, nil
}

// AssigneesByChore returns, for each chore id, the ids of its assignees in
// ascending order. Chores with no assignees are absent from the map.
func (l *Ledger) AssigneesByChore(ctx context.Context, choreIDs []int64) (map[int64][]int64, error) {
	var rows []model.Assignment
	err := store.Call(ctx, l.policy, func(ctx context.Context) error {
		var err error
		rows, err = l.assignments.ListForChores(ctx, choreIDs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	out := make(map[int64][]int64, len(choreIDs))
	for _, a := range rows {
		out[a.ChoreID] = append(out[a.ChoreID], a.PersonID)
	}
	return out, nil
}

func (l *Ledger) chore(ctx context.Context, choreID int64) (*model.Chore, error) {
	var c *model.Chore
	err := store.Call(ctx, l.policy, func(ctx context.Context) error {
		var err error
		c, err = l.chores.GetByID(ctx, choreID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	if c == nil {
		return nil, apperr.NotFound("chore", choreID)
	}
	return c, nil
}
