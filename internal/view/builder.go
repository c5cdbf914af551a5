// Package view projects households, chores and assignments into the
// per-member structure the UI renders.
package view

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/roomies/internal/assignment"
	"github.com/dukerupert/roomies/internal/chore"
	"github.com/dukerupert/roomies/internal/household"
	"github.com/dukerupert/roomies/internal/model"
	"github.com/dukerupert/roomies/internal/recurrence"
)

// Assignee is the display form of a person on a chore.
type Assignee struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// ChoreView is a chore merged with its assignees and decoded schedule.
type ChoreView struct {
	model.Chore
	Assignees  []Assignee           `json:"assignees"`
	RepeatDays []recurrence.Weekday `json:"repeat_days"`
	Repeat     string               `json:"repeat"`
	// RRule is the schedule as an iCalendar rule for calendar export.
	RRule      string               `json:"rrule,omitempty"`
	Overdue    bool                 `json:"overdue"`
	NextDue    *time.Time           `json:"next_due,omitempty"`
}

// MemberView is one household member and the chores they are on.
type MemberView struct {
	Person model.Person `json:"person"`
	Chores []ChoreView  `json:"chores"`
}

// HouseholdView is the whole household, one entry per member.
type HouseholdView struct {
	HouseholdID int64               `json:"household_id"`
	Statuses    []model.ChoreStatus `json:"statuses"`
	Members     []MemberView        `json:"members"`
}

type Builder struct {
	directory *household.Directory
	chores    *chore.Repository
	ledger    *assignment.Ledger
	logger    *slog.Logger
	now       func() time.Time
}

func NewBuilder(directory *household.Directory, chores *chore.Repository, ledger *assignment.Ledger, logger *slog.Logger) *Builder {
	return &Builder{
		directory: directory,
		chores:    chores,
		ledger:    ledger,
		logger:    logger,
		now:       time.Now,
	}
}

// BuildHouseholdView returns the ongoing-chore view of the household.
func (b *Builder) BuildHouseholdView(ctx context.Context, actorID, householdID int64) (*HouseholdView, error) {
	return b.BuildHouseholdViewByStatus(ctx, actorID, householdID, model.ChoreOngoing)
}

// BuildHouseholdViewByStatus returns one entry per member, ordered by display
// name, including members with no chores. Each member's chores are ordered by
// due date. Chores without any assignee are left out and logged.
func (b *Builder) BuildHouseholdViewByStatus(ctx context.Context, actorID, householdID int64, statuses ...model.ChoreStatus) (*HouseholdView, error) {
	if len(statuses) == 0 {
		statuses = []model.ChoreStatus{model.ChoreOngoing}
	}

	if err := b.directory.RequireMember(ctx, householdID, actorID); err != nil {
		return nil, err
	}
	members, err := b.directory.ListMembers(ctx, householdID)
	if err != nil {
		return nil, err
	}
	chores, err := b.chores.ListChores(ctx, actorID, householdID, statuses...)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(chores))
	for i, c := range chores {
		ids[i] = c.ID
	}
	assignees, err := b.ledger.AssigneesByChore(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("build household view: %w", err)
	}

	names := make(map[int64]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}

	now := b.now()
	byPerson := make(map[int64][]ChoreView, len(members))
	for _, c := range chores {
		pids := assignees[c.ID]
		if len(pids) == 0 {
			b.logger.Warn("chore without assignees left out of view", "chore_id", c.ID, "household_id", householdID)
			continue
		}
		cv, err := b.choreView(c, pids, names, now)
		if err != nil {
			return nil, err
		}
		for _, pid := range pids {
			if _, ok := names[pid]; !ok {
				continue
			}
			byPerson[pid] = append(byPerson[pid], cv)
		}
	}

	out := &HouseholdView{
		HouseholdID: householdID,
		Statuses:    statuses,
		Members:     make([]MemberView, 0, len(members)),
	}
	for _, m := range members {
		cvs := byPerson[m.ID]
		if cvs == nil {
			cvs = []ChoreView{}
		}
		out.Members = append(out.Members, MemberView{Person: m, Chores: cvs})
	}
	return out, nil
}

func (b *Builder) choreView(c model.Chore, pids []int64, names map[int64]string, now time.Time) (ChoreView, error) {
	days, err := recurrence.Decode(c.RepeatMask)
	if err != nil {
		return ChoreView{}, fmt.Errorf("chore %d: %w", c.ID, err)
	}
	rule, err := recurrence.RRule(c.RepeatMask)
	if err != nil {
		return ChoreView{}, fmt.Errorf("chore %d: %w", c.ID, err)
	}

	cv := ChoreView{
		Chore:      c,
		Assignees:  make([]Assignee, 0, len(pids)),
		RepeatDays: days,
		Repeat:     recurrence.Describe(c.RepeatMask),
		RRule:      rule,
		Overdue:    chore.IsOverdue(c, now),
	}
	for _, pid := range pids {
		name, ok := names[pid]
		if !ok {
			b.logger.Warn("assignee is not a household member", "chore_id", c.ID, "person_id", pid)
			continue
		}
		cv.Assignees = append(cv.Assignees, Assignee{ID: pid, DisplayName: name})
	}
	slices.SortStableFunc(cv.Assignees, func(x, y Assignee) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(x.DisplayName), strings.ToLower(y.DisplayName)),
			cmp.Compare(x.ID, y.ID),
		)
	})
	if c.Status == model.ChoreOngoing && c.RepeatMask != 0 {
		if next, ok := recurrence.Next(c.RepeatMask, c.DueDate); ok {
			cv.NextDue = &next
		}
	}
	return cv, nil
}
