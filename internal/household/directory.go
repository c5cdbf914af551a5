// Package household resolves people to households and manages membership.
package household

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/dukerupert/roomies/internal/event"
	"github.com/dukerupert/roomies/internal/model"
	"github.com/dukerupert/roomies/internal/store"
)

const (
	inviteCodeLength   = 6
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeAttempts = 5

	// LeftHouseholdReason is recorded on ongoing chores whose last assignee
	// left the household.
	LeftHouseholdReason = "Assignee left the household"
)

// ErrAlreadyInHousehold is returned when a person who belongs to a household
// tries to create or join another one.
var ErrAlreadyInHousehold = fmt.Errorf("already a member of a household, leave it first: %w", apperr.ErrConflict)

type Directory struct {
	db          *sql.DB
	households  *store.HouseholdStore
	people      *store.PersonStore
	chores      *store.ChoreStore
	assignments *store.AssignmentStore
	machines    *store.MachineStore
	policy      store.CallPolicy
	events      event.Publisher
	logger      *slog.Logger
	newCode     func() (string, error)
}

func NewDirectory(db *sql.DB, policy store.CallPolicy, events event.Publisher, logger *slog.Logger) *Directory {
	if events == nil {
		events = event.Discard
	}
	return &Directory{
		db:          db,
		households:  store.NewHouseholdStore(db),
		people:      store.NewPersonStore(db),
		chores:      store.NewChoreStore(db),
		assignments: store.NewAssignmentStore(db),
		machines:    store.NewMachineStore(db),
		policy:      policy,
		events:      events,
		logger:      logger,
		newCode:     GenerateInviteCode,
	}
}

// GenerateInviteCode returns a random 6-character uppercase alphanumeric code.
func GenerateInviteCode() (string, error) {
	b := make([]byte, inviteCodeLength)
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		b[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// NormalizeInviteCode trims and upper-cases user input.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RegisterPerson records a new person with no household. Credentials belong
// to the external auth provider.
func (d *Directory) RegisterPerson(ctx context.Context, displayName string) (*model.Person, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apperr.Invalid("display_name", "is required")
	}

	var p *model.Person
	err := store.Call(ctx, d.policy, func(ctx context.Context) error {
		var err error
		p, err = d.people.Create(ctx, displayName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("register person: %w", err)
	}
	return p, nil
}

// Person loads a person or fails with apperr.ErrNotFound.
func (d *Directory) Person(ctx context.Context, personID int64) (*model.Person, error) {
	var p *model.Person
	err := store.Call(ctx, d.policy, func(ctx context.Context) error {
		var err error
		p, err = d.people.GetByID(ctx, personID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	if p == nil {
		return nil, apperr.NotFound("person", personID)
	}
	return p, nil
}

// ResolveHouseholdForPerson returns the person's current household id, or
// nil when they have not joined one yet.
func (d *Directory) ResolveHouseholdForPerson(ctx context.Context, personID int64) (*int64, error) {
	p, err := d.Person(ctx, personID)
	if err != nil {
		return nil, err
	}
	return p.HouseholdID, nil
}

// ListMembers returns the household's members ordered by display name, ties
// broken by id. A household with no members yields an empty slice.
func (d *Directory) ListMembers(ctx context.Context, householdID int64) ([]model.Person, error) {
	var members []model.Person
	err := store.Call(ctx, d.policy, func(ctx context.Context) error {
		h, err := d.households.GetByID(ctx, householdID)
		if err != nil {
			return err
		}
		if h == nil {
			return apperr.NotFound("household", householdID)
		}
		members, err = d.people.ListByHousehold(ctx, householdID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if members == nil {
		members = []model.Person{}
	}
	return members, nil
}

// RequireMember fails with apperr.ErrNotMember unless personID currently
// belongs to householdID.
func (d *Directory) RequireMember(ctx context.Context, householdID, personID int64) error {
	current, err := d.ResolveHouseholdForPerson(ctx, personID)
	if err != nil {
		return err
	}
	if current == nil || *current != householdID {
		return fmt.Errorf("person %d, household %d: %w", personID, householdID, apperr.ErrNotMember)
	}
	return nil
}

// Household returns the household, including its invite code, to a member.
func (d *Directory) Household(ctx context.Context, actorID, householdID int64) (*model.Household, error) {
	if err := d.RequireMember(ctx, householdID, actorID); err != nil {
		return nil, err
	}
	var h *model.Household
	err := store.Call(ctx, d.policy, func(ctx context.Context) error {
		var err error
		h, err = d.households.GetByID(ctx, householdID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	if h == nil {
		return nil, apperr.NotFound("household", householdID)
	}
	return h, nil
}

// CreateHousehold creates a household with a fresh invite code and makes the
// actor its first member.
func (d *Directory) CreateHousehold(ctx context.Context, actorID int64, name string) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	actor, err := d.Person(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.HouseholdID != nil {
		return nil, ErrAlreadyInHousehold
	}

	var h *model.Household
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := d.newCode()
		if err != nil {
			return nil, err
		}

		var taken bool
		err = store.Call(ctx, d.policy, func(ctx context.Context) error {
			return store.InTx(ctx, d.db, func(tx *sql.Tx) error {
				hs := d.households.WithTx(tx)
				exists, err := hs.InviteCodeExists(ctx, code)
				if err != nil {
					return err
				}
				if exists {
					taken = true
					return nil
				}
				h, err = hs.Create(ctx, name, code)
				if err != nil {
					return err
				}
				return d.people.WithTx(tx).SetHousehold(ctx, actorID, &h.ID)
			})
		})
		if err != nil {
			return nil, fmt.Errorf("create household: %w", err)
		}
		if !taken {
			d.logger.Info("household created", "household_id", h.ID, "person_id", actorID)
			d.events.Publish(event.Event{HouseholdID: h.ID, Entity: "member", Action: "joined", ID: actorID})
			return h, nil
		}
		d.logger.Debug("invite code collision", "attempt", attempt+1)
	}
	return nil, fmt.Errorf("create household: no free invite code after %d attempts: %w", inviteCodeAttempts, apperr.ErrConflict)
}

// JoinByInviteCode adds the actor to the household owning code. Joining the
// household one already belongs to is a no-op.
func (d *Directory) JoinByInviteCode(ctx context.Context, actorID int64, code string) (*model.Household, error) {
	code = NormalizeInviteCode(code)
	if code == "" {
		return nil, apperr.Invalid("invite_code", "is required")
	}
	actor, err := d.Person(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var h *model.Household
	err = store.Call(ctx, d.policy, func(ctx context.Context) error {
		var err error
		h, err = d.households.GetByInviteCode(ctx, code)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("join household: %w", err)
	}
	if h == nil {
		return nil, fmt.Errorf("invite code %q: %w", code, apperr.ErrNotFound)
	}

	if actor.HouseholdID != nil {
		if *actor.HouseholdID == h.ID {
			return h, nil
		}
		return nil, ErrAlreadyInHousehold
	}

	err = store.Call(ctx, d.policy, func(ctx context.Context) error {
		return d.people.SetHousehold(ctx, actorID, &h.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("join household: %w", err)
	}

	d.logger.Info("household joined", "household_id", h.ID, "person_id", actorID)
	d.events.Publish(event.Event{HouseholdID: h.ID, Entity: "member", Action: "joined", ID: actorID})
	return h, nil
}

// LeaveResult summarises the cascade performed when a person leaves.
type LeaveResult struct {
	HouseholdID        int64 `json:"household_id"`
	AssignmentsRemoved int64 `json:"assignments_removed"`
	ChoresPassed       int   `json:"chores_passed"`
}

// Leave removes the actor from their household in one transaction: their
// assignments on that household's chores are deleted, the ongoing chores
// they were the last assignee of are passed with LeftHouseholdReason, and
// machines they occupy are released.
func (d *Directory) Leave(ctx context.Context, actorID int64) (*LeaveResult, error) {
	actor, err := d.Person(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.HouseholdID == nil {
		return nil, fmt.Errorf("person %d has no household: %w", actorID, apperr.ErrNotMember)
	}
	householdID := *actor.HouseholdID

	var res *LeaveResult
	err = store.Call(ctx, d.policy, func(ctx context.Context) error {
		res = &LeaveResult{HouseholdID: householdID}
		return store.InTx(ctx, d.db, func(tx *sql.Tx) error {
			assigns := d.assignments.WithTx(tx)
			choreIDs, err := assigns.DeleteForPersonInHousehold(ctx, actorID, householdID)
			if err != nil {
				return err
			}
			res.AssignmentsRemoved = int64(len(choreIDs))

			chores := d.chores.WithTx(tx)
			for _, id := range choreIDs {
				n, err := assigns.CountForChore(ctx, id)
				if err != nil {
					return err
				}
				if n > 0 {
					continue
				}
				passed, err := chores.Pass(ctx, id, LeftHouseholdReason)
				if err != nil {
					return err
				}
				if passed {
					res.ChoresPassed++
				}
			}

			if err := d.machines.WithTx(tx).ReleaseAllFor(ctx, householdID, actorID); err != nil {
				return err
			}
			return d.people.WithTx(tx).SetHousehold(ctx, actorID, nil)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("leave household: %w", err)
	}

	d.logger.Info("household left",
		"household_id", householdID,
		"person_id", actorID,
		"assignments_removed", res.AssignmentsRemoved,
		"chores_passed", res.ChoresPassed,
	)
	d.events.Publish(event.Event{HouseholdID: householdID, Entity: "member", Action: "left", ID: actorID})
	return res, nil
}

// Rename changes the household's display name.
func (d *Directory) Rename(ctx context.Context, actorID, householdID int64, name string) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if err := d.RequireMember(ctx, householdID, actorID); err != nil {
		return nil, err
	}
	var h *model.Household
	err := store.Call(ctx, d.policy, func(ctx context.Context) error {
		var err error
		h, err = d.households.Rename(ctx, householdID, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rename household: %w", err)
	}
	d.events.Publish(event.Event{HouseholdID: householdID, Entity: "household", Action: "updated", ID: householdID})
	return h, nil
}

// IsNotMember reports whether err is a membership failure.
func IsNotMember(err error) bool {
	return errors.Is(err, apperr.ErrNotMember)
}
