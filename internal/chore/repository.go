// Package chore owns chore records and their lifecycle.
package chore

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/dukerupert/roomies/internal/assignment"
	"github.com/dukerupert/roomies/internal/event"
	"github.com/dukerupert/roomies/internal/household"
	"github.com/dukerupert/roomies/internal/model"
	"github.com/dukerupert/roomies/internal/recurrence"
	"github.com/dukerupert/roomies/internal/store"
)

// NewChore is the input to Create.
type NewChore struct {
	HouseholdID int64   `json:"household_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date"`
	RepeatMask  int     `json:"repeat_mask"`
	AssigneeIDs []int64 `json:"assignee_ids"`
}

// Proof is an optional completion photo.
type Proof struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// ProofUploader stores a completion photo and returns its public URL.
type ProofUploader interface {
	UploadProof(ctx context.Context, choreID int64, filename, contentType string, body io.Reader) (string, error)
}

type Repository struct {
	db        *sql.DB
	directory *household.Directory
	ledger    *assignment.Ledger
	chores    *store.ChoreStore
	assigns   *store.AssignmentStore
	proofs    ProofUploader
	policy    store.CallPolicy
	events    event.Publisher
	logger    *slog.Logger
}

func NewRepository(db *sql.DB, directory *household.Directory, ledger *assignment.Ledger, proofs ProofUploader, policy store.CallPolicy, events event.Publisher, logger *slog.Logger) *Repository {
	if events == nil {
		events = event.Discard
	}
	return &Repository{
		db:        db,
		directory: directory,
		ledger:    ledger,
		chores:    store.NewChoreStore(db),
		assigns:   store.NewAssignmentStore(db),
		proofs:    proofs,
		policy:    policy,
		events:    events,
		logger:    logger,
	}
}

// validate checks every field and reports all violations together.
func (in NewChore) validate() (time.Time, error) {
	var errs error
	if in.HouseholdID <= 0 {
		errs = multierr.Append(errs, apperr.Field("household_id", "is required"))
	}
	if strings.TrimSpace(in.Name) == "" {
		errs = multierr.Append(errs, apperr.Field("name", "is required"))
	}
	var due time.Time
	if strings.TrimSpace(in.DueDate) == "" {
		errs = multierr.Append(errs, apperr.Field("due_date", "is required"))
	} else if d, err := ParseDueDate(in.DueDate); err != nil {
		errs = multierr.Append(errs, apperr.Field("due_date", "must be a date like 2025-07-02"))
	} else {
		due = d
	}
	errs = multierr.Append(errs, recurrence.Validate(in.RepeatMask))
	if len(assignment.Normalize(in.AssigneeIDs)) == 0 {
		errs = multierr.Append(errs, apperr.Field("assignees", assignment.EmptyAssigneesMessage))
	}
	return due, apperr.Collect(errs)
}

// Create inserts an ongoing chore and its assignments as one unit. If any
// assignee is outside the household the whole creation is rolled back and a
// *apperr.CrossHouseholdError is returned; no chore row survives.
func (r *Repository) Create(ctx context.Context, actorID int64, in NewChore) (*model.Chore, error) {
	due, err := in.validate()
	if err != nil {
		return nil, err
	}
	if err := r.directory.RequireMember(ctx, in.HouseholdID, actorID); err != nil {
		return nil, err
	}

	params := store.ChoreParams{
		HouseholdID: in.HouseholdID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		DueDate:     due,
		RepeatMask:  in.RepeatMask,
		CreatedBy:   &actorID,
	}

	var c *model.Chore
	err = store.Call(ctx, r.policy, func(ctx context.Context) error {
		return store.InTx(ctx, r.db, func(tx *sql.Tx) error {
			var err error
			c, err = r.chores.WithTx(tx).Create(ctx, params)
			if err != nil {
				return err
			}
			return r.ledger.AssignInTx(ctx, tx, c, in.AssigneeIDs)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create chore: %w", err)
	}

	r.logger.Info("chore created", "chore_id", c.ID, "household_id", c.HouseholdID, "person_id", actorID)
	r.events.Publish(event.Event{HouseholdID: c.HouseholdID, Entity: "chore", Action: "created", ID: c.ID})
	return c, nil
}

// Get returns a chore visible to the actor.
func (r *Repository) Get(ctx context.Context, actorID, choreID int64) (*model.Chore, error) {
	c, err := r.load(ctx, choreID)
	if err != nil {
		return nil, err
	}
	if err := r.directory.RequireMember(ctx, c.HouseholdID, actorID); err != nil {
		return nil, err
	}
	return c, nil
}

// ListChores returns the household's chores ordered by due date. With no
// statuses only ongoing chores are returned; history views pass statuses
// explicitly.
func (r *Repository) ListChores(ctx context.Context, actorID, householdID int64, statuses ...model.ChoreStatus) ([]model.Chore, error) {
	if err := r.directory.RequireMember(ctx, householdID, actorID); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		statuses = []model.ChoreStatus{model.ChoreOngoing}
	}

	var chores []model.Chore
	err := store.Call(ctx, r.policy, func(ctx context.Context) error {
		var err error
		chores, err = r.chores.ListByHousehold(ctx, householdID, statuses...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	return chores, nil
}

// MarkCompleted moves an ongoing chore to completed. Any other starting
// status fails with apperr.ErrInvalidTransition and leaves the chore as is.
func (r *Repository) MarkCompleted(ctx context.Context, actorID, choreID int64, completedAt time.Time, imageURL *string) (*model.Chore, error) {
	if _, err := r.Get(ctx, actorID, choreID); err != nil {
		return nil, err
	}
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	if imageURL != nil && strings.TrimSpace(*imageURL) == "" {
		imageURL = nil
	}
	return r.transition(ctx, choreID, model.ChoreCompleted, func(ctx context.Context) (bool, error) {
		return r.chores.Complete(ctx, choreID, completedAt, imageURL)
	})
}

// CompleteWithProof uploads the optional photo then completes the chore.
// Upload failures are logged and the chore is completed without an image.
func (r *Repository) CompleteWithProof(ctx context.Context, actorID, choreID int64, completedAt time.Time, proof *Proof) (*model.Chore, error) {
	c, err := r.Get(ctx, actorID, choreID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, model.ChoreCompleted) {
		return nil, apperr.InvalidTransition("chore", choreID, string(c.Status), string(model.ChoreCompleted))
	}

	var imageURL *string
	if proof != nil && proof.Body != nil && r.proofs != nil {
		url, err := r.proofs.UploadProof(ctx, choreID, proof.Filename, proof.ContentType, proof.Body)
		if err != nil {
			r.logger.Warn("proof upload failed, completing without image", "chore_id", choreID, "error", err)
		} else {
			imageURL = &url
		}
	}
	done, err := r.MarkCompleted(ctx, actorID, choreID, completedAt, imageURL)
	if err != nil && imageURL != nil {
		r.logger.Warn("chore not completed, uploaded proof is orphaned", "chore_id", choreID, "image_url", *imageURL, "error", err)
	}
	return done, err
}

// MarkPassed moves an ongoing chore to passed. A blank reason is stored as
// DefaultPassReason.
func (r *Repository) MarkPassed(ctx context.Context, actorID, choreID int64, reason string) (*model.Chore, error) {
	if _, err := r.Get(ctx, actorID, choreID); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultPassReason
	}
	return r.transition(ctx, choreID, model.ChorePassed, func(ctx context.Context) (bool, error) {
		return r.chores.Pass(ctx, choreID, reason)
	})
}

// transition runs a conditional update and, when it did not apply, reports
// why from the chore's current state.
func (r *Repository) transition(ctx context.Context, choreID int64, to model.ChoreStatus, update func(ctx context.Context) (bool, error)) (*model.Chore, error) {
	var applied bool
	err := store.Call(ctx, r.policy, func(ctx context.Context) error {
		var err error
		applied, err = update(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s chore: %w", to, err)
	}

	// The read-back is retried on its own so a transient failure never
	// replays an update that already applied.
	var c *model.Chore
	err = store.Call(ctx, r.policy, func(ctx context.Context) error {
		var err error
		c, err = r.chores.GetByID(ctx, choreID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s chore: read back: %w", to, err)
	}
	if c == nil {
		return nil, apperr.NotFound("chore", choreID)
	}
	if !applied {
		return nil, apperr.InvalidTransition("chore", choreID, string(c.Status), string(to))
	}

	r.logger.Info("chore "+string(to), "chore_id", choreID, "household_id", c.HouseholdID)
	r.events.Publish(event.Event{HouseholdID: c.HouseholdID, Entity: "chore", Action: string(to), ID: choreID})
	return c, nil
}

// Delete removes a chore together with its assignments.
func (r *Repository) Delete(ctx context.Context, actorID, choreID int64) error {
	c, err := r.Get(ctx, actorID, choreID)
	if err != nil {
		return err
	}
	err = store.Call(ctx, r.policy, func(ctx context.Context) error {
		return store.InTx(ctx, r.db, func(tx *sql.Tx) error {
			if err := r.assigns.WithTx(tx).DeleteForChore(ctx, choreID); err != nil {
				return err
			}
			return r.chores.WithTx(tx).Delete(ctx, choreID)
		})
	})
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}

	r.logger.Info("chore deleted", "chore_id", choreID, "household_id", c.HouseholdID)
	r.events.Publish(event.Event{HouseholdID: c.HouseholdID, Entity: "chore", Action: "deleted", ID: choreID})
	return nil
}

func (r *Repository) load(ctx context.Context, choreID int64) (*model.Chore, error) {
	var c *model.Chore
	err := store.Call(ctx, r.policy, func(ctx context.Context) error {
		var err error
		c, err = r.chores.GetByID(ctx, choreID)
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
