// Package machine tracks occupancy of shared household machines.
package machine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/dukerupert/roomies/internal/event"
	"github.com/dukerupert/roomies/internal/household"
	"github.com/dukerupert/roomies/internal/model"
	"github.com/dukerupert/roomies/internal/store"
)

var (
	// ErrBusy is returned when occupying a machine someone else holds.
	ErrBusy = fmt.Errorf("machine is busy: %w", apperr.ErrConflict)
	// ErrNotOccupier is returned when finishing a machine the actor does not hold.
	ErrNotOccupier = fmt.Errorf("machine is not occupied by you: %w", apperr.ErrConflict)
)

type Service struct {
	directory *household.Directory
	machines  *store.MachineStore
	policy    store.CallPolicy
	events    event.Publisher
	logger    *slog.Logger
}

func NewService(db *sql.DB, directory *household.Directory, policy store.CallPolicy, events event.Publisher, logger *slog.Logger) *Service {
	if events == nil {
		events = event.Discard
	}
	return &Service{
		directory: directory,
		machines:  store.NewMachineStore(db),
		policy:    policy,
		events:    events,
		logger:    logger,
	}
}

// Create adds an available machine to the household.
func (s *Service) Create(ctx context.Context, actorID, householdID int64, name string, imageURL *string) (*model.Machine, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if err := s.directory.RequireMember(ctx, householdID, actorID); err != nil {
		return nil, err
	}
	if imageURL != nil && strings.TrimSpace(*imageURL) == "" {
		imageURL = nil
	}

	var m *model.Machine
	err := store.Call(ctx, s.policy, func(ctx context.Context) error {
		var err error
		m, err = s.machines.Create(ctx, householdID, name, imageURL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create machine: %w", err)
	}

	s.logger.Info("machine created", "machine_id", m.ID, "household_id", householdID)
	s.events.Publish(event.Event{HouseholdID: householdID, Entity: "machine", Action: "created", ID: m.ID})
	return m, nil
}

// List returns the household's machines in creation order.
func (s *Service) List(ctx context.Context, actorID, householdID int64) ([]model.Machine, error) {
	if err := s.directory.RequireMember(ctx, householdID, actorID); err != nil {
		return nil, err
	}
	var machines []model.Machine
	err := store.Call(ctx, s.policy, func(ctx context.Context) error {
		var err error
		machines, err = s.machines.ListByHousehold(ctx, householdID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	if machines == nil {
		machines = []model.Machine{}
	}
	return machines, nil
}

// Occupy marks the machine busy for the actor only if it is available. Two
// people racing for the same machine get one success and one ErrBusy.
func (s *Service) Occupy(ctx context.Context, actorID, machineID int64) (*model.Machine, error) {
	m, err := s.load(ctx, actorID, machineID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, m, "occupied", ErrBusy, func(ctx context.Context) (bool, error) {
		return s.machines.Occupy(ctx, machineID, actorID)
	})
}

// Finish releases the machine. Only the current occupier may finish.
func (s *Service) Finish(ctx context.Context, actorID, machineID int64) (*model.Machine, error) {
	m, err := s.load(ctx, actorID, machineID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, m, "finished", ErrNotOccupier, func(ctx context.Context) (bool, error) {
		return s.machines.Release(ctx, machineID, actorID)
	})
}

func (s *Service) apply(ctx context.Context, m *model.Machine, action string, refused error, update func(ctx context.Context) (bool, error)) (*model.Machine, error) {
	var applied bool
	err := store.Call(ctx, s.policy, func(ctx context.Context) error {
		var err error
		applied, err = update(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s machine: %w", action, err)
	}
	if !applied {
		return nil, refused
	}

	var after *model.Machine
	err = store.Call(ctx, s.policy, func(ctx context.Context) error {
		var err error
		after, err = s.machines.GetByID(ctx, m.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s machine: read back: %w", action, err)
	}
	if after == nil {
		return nil, apperr.NotFound("machine", m.ID)
	}

	s.logger.Info("machine "+action, "machine_id", m.ID, "household_id", m.HouseholdID)
	s.events.Publish(event.Event{HouseholdID: m.HouseholdID, Entity: "machine", Action: action, ID: m.ID})
	return after, nil
}

func (s *Service) load(ctx context.Context, actorID, machineID int64) (*model.Machine, error) {
	var m *model.Machine
	err := store.Call(ctx, s.policy, func(ctx context.Context) error {
		var err error
		m, err = s.machines.GetByID(ctx, machineID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get machine: %w", err)
	}
	if m == nil {
		return nil, apperr.NotFound("machine", machineID)
	}
	if err := s.directory.RequireMember(ctx, m.HouseholdID, actorID); err != nil {
		return nil, err
	}
	return m, nil
}
