package chore

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/dukerupert/roomies/internal/model"
)

// DefaultPassReason is stored when a chore is passed without a reason.
const DefaultPassReason = "N/A"

// ParseStatus accepts a status name case-insensitively.
func ParseStatus(s string) (model.ChoreStatus, error) {
	switch st := model.ChoreStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case model.ChoreOngoing, model.ChoreCompleted, model.ChorePassed:
		return st, nil
	}
	return "", apperr.Invalid("status", fmt.Sprintf("unknown status %q", s))
}

// ParseStatuses parses a comma separated status filter. An empty filter
// yields nil.
func ParseStatuses(s string) ([]model.ChoreStatus, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []model.ChoreStatus
	for _, part := range strings.Split(s, ",") {
		st, err := ParseStatus(part)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// CanTransition reports whether a chore may move from one status to another.
// Only ongoing chores move, and only to a terminal status.
func CanTransition(from, to model.ChoreStatus) bool {
	return from == model.ChoreOngoing && (to == model.ChoreCompleted || to == model.ChorePassed)
}

// IsTerminal reports whether no transition leaves st.
func IsTerminal(st model.ChoreStatus) bool {
	return st == model.ChoreCompleted || st == model.ChorePassed
}

// ParseDueDate accepts a calendar date (2006-01-02) or an RFC 3339
// timestamp, keeping only the date.
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse due date %q: expected YYYY-MM-DD", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// IsOverdue reports whether an ongoing chore's due date is before today in
// now's location. Overdue is never stored.
func IsOverdue(c model.Chore, now time.Time) bool {
	if c.Status != model.ChoreOngoing {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	due := time.Date(c.DueDate.Year(), c.DueDate.Month(), c.DueDate.Day(), 0, 0, 0, 0, time.UTC)
	return due.Before(today)
}
