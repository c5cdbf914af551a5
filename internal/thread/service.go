// Package thread holds household discussion threads, optionally tied to a
// chore.
package thread

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/multierr"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/dukerupert/roomies/internal/event"
	"github.com/dukerupert/roomies/internal/household"
	"github.com/dukerupert/roomies/internal/model"
	"github.com/dukerupert/roomies/internal/store"
)

const maxTitleLength = 200

type Service struct {
	directory *household.Directory
	threads   *store.ThreadStore
	chores    *store.ChoreStore
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
		threads:   store.NewThreadStore(db),
		chores:    store.NewChoreStore(db),
		policy:    policy,
		events:    events,
		logger:    logger,
	}
}

// CreateThread opens a thread in the household. When choreID is set the
// chore must belong to the same household.
func (s *Service) CreateThread(ctx context.Context, actorID, householdID int64, choreID *int64, title string) (*model.Thread, error) {
	title = strings.TrimSpace(title)
	var errs error
	if title == "" {
		errs = multierr.Append(errs, apperr.Field("title", "is required"))
	} else if len(title) > maxTitleLength {
		errs = multierr.Append(errs, apperr.Field("title", fmt.Sprintf("must be at most %d characters", maxTitleLength)))
	}
	if choreID != nil && *choreID <= 0 {
		errs = multierr.Append(errs, apperr.Field("chore_id", "must be positive"))
	}
	if err := apperr.Collect(errs); err != nil {
		return nil, err
	}
	if err := s.directory.RequireMember(ctx, householdID, actorID); err != nil {
		return nil, err
	}

	var t *model.Thread
	err := store.Call(ctx, s.policy, func(ctx context.Context) error {
		if choreID != nil {
			c, err := s.chores.GetByID(ctx, *choreID)
			if err != nil {
				return err
			}
			if c == nil || c.HouseholdID != householdID {
				return apperr.NotFound("chore", *choreID)
			}
		}
		var err error
		t, err = s.threads.Create(ctx, householdID, choreID, actorID, title)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	s.logger.Info("thread created", "thread_id", t.ID, "household_id", householdID)
	s.events.Publish(event.Event{HouseholdID: householdID, Entity: "thread", Action: "created", ID: t.ID})
	return t, nil
}

// ListThreads returns the household's threads newest first, optionally only
// those about one chore.
func (s *Service) ListThreads(ctx context.Context, actorID, householdID int64, choreID *int64) ([]model.Thread, error) {
	if err := s.directory.RequireMember(ctx, householdID, actorID); err != nil {
		return nil, err
	}
	var threads []model.Thread
	err := store.Call(ctx, s.policy, func(ctx context.Context) error {
		var err error
		threads, err = s.threads.List(ctx, householdID, choreID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	if threads == nil {
		threads = []model.Thread{}
	}
	return threads, nil
}

// PostMessage appends a message to a thread.
func (s *Service) PostMessage(ctx context.Context, actorID, threadID int64, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Invalid("body", "is required")
	}
	t, err := s.thread(ctx, actorID, threadID)
	if err != nil {
		return nil, err
	}

	var m *model.Message
	err = store.Call(ctx, s.policy, func(ctx context.Context) error {
		var err error
		m, err = s.threads.AddMessage(ctx, threadID, actorID, body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}

	s.events.Publish(event.Event{
		HouseholdID: t.HouseholdID,
		Entity:      "message",
		Action:      "created",
		ID:          m.ID,
		Extra:       map[string]any{"thread_id": threadID},
	})
	return m, nil
}

// ListMessages returns a thread's messages oldest first.
func (s *Service) ListMessages(ctx context.Context, actorID, threadID int64) ([]model.Message, error) {
	if _, err := s.thread(ctx, actorID, threadID); err != nil {
		return nil, err
	}
	var messages []model.Message
	err := store.Call(ctx, s.policy, func(ctx context.Context) error {
		var err error
		messages, err = s.threads.ListMessages(ctx, threadID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

func (s *Service) thread(ctx context.Context, actorID, threadID int64) (*model.Thread, error) {
	var t *model.Thread
	err := store.Call(ctx, s.policy, func(ctx context.Context) error {
		var err error
		t, err = s.threads.GetByID(ctx, threadID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	if t == nil {
		return nil, apperr.NotFound("thread", threadID)
	}
	if err := s.directory.RequireMember(ctx, t.HouseholdID, actorID); err != nil {
		return nil, err
	}
	return t, nil
}
