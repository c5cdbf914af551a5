package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/roomies/internal/model"
)

type ChoreStore struct {
	db DBTX
}

func NewChoreStore(db DBTX) *ChoreStore {
	return &ChoreStore{db: db}
}

func (s *ChoreStore) WithTx(tx *sql.Tx) *ChoreStore {
	return &ChoreStore{db: tx}
}

// ChoreParams are the columns written when a chore is created.
type ChoreParams struct {
	HouseholdID int64
	Name        string
	Description string
	DueDate     time.Time
	RepeatMask  int
	CreatedBy   *int64
}

func scanChore(sc scanner) (*model.Chore, error) {
	var c model.Chore
	var dueDate string
	var status string
	var dropReason, imageURL sql.NullString
	var completedAt sql.NullTime
	var createdBy sql.NullInt64

	err := sc.Scan(
		&c.ID, &c.HouseholdID, &c.Name, &c.Description, &dueDate, &status,
		&dropReason, &completedAt, &imageURL, &c.RepeatMask, &createdBy,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.DueDate, err = time.Parse(model.DateLayout, dueDate)
	if err != nil {
		return nil, fmt.Errorf("parse due date %q: %w", dueDate, err)
	}
	c.Status = model.ChoreStatus(status)
	c.DropReason = stringPtr(dropReason)
	c.ImageURL = stringPtr(imageURL)
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	c.CreatedBy = int64Ptr(createdBy)
	return &c, nil
}

const choreCols = `id, household_id, name, description, due_date, status, drop_reason, completed_at, image_url, repeat_mask, created_by, created_at, updated_at`

const choreColsQualified = `c.id, c.household_id, c.name, c.description, c.due_date, c.status, c.drop_reason, c.completed_at, c.image_url, c.repeat_mask, c.created_by, c.created_at, c.updated_at`

func (s *ChoreStore) Create(ctx context.Context, p ChoreParams) (*model.Chore, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chores (household_id, name, description, due_date, status, repeat_mask, created_by) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.HouseholdID, p.Name, p.Description, p.DueDate.Format(model.DateLayout),
		string(model.ChoreOngoing), p.RepeatMask, nullInt64(p.CreatedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ChoreStore) GetByID(ctx context.Context, id int64) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// ListByHousehold returns the household's chores in the given statuses (all
// statuses when none are given), ordered by due date then id.
func (s *ChoreStore) ListByHousehold(ctx context.Context, householdID int64, statuses ...model.ChoreStatus) ([]model.Chore, error) {
	query := `SELECT ` + choreCols + ` FROM chores WHERE household_id = ?`
	args := []any{householdID}
	query, args = withStatuses(query, "status", args, statuses)
	query += ` ORDER BY due_date ASC, id ASC`

	return s.list(ctx, "list chores", query, args...)
}

// ListByAssignee returns chores the person is assigned to, ordered by due
// date then id.
func (s *ChoreStore) ListByAssignee(ctx context.Context, personID int64, statuses ...model.ChoreStatus) ([]model.Chore, error) {
	query := `SELECT ` + choreColsQualified + ` FROM chores c
		JOIN chore_assignments a ON a.chore_id = c.id
		WHERE a.person_id = ?`
	args := []any{personID}
	query, args = withStatuses(query, "c.status", args, statuses)
	query += ` ORDER BY c.due_date ASC, c.id ASC`

	return s.list(ctx, "list chores by assignee", query, args...)
}

func (s *ChoreStore) list(ctx context.Context, op, query string, args ...any) ([]model.Chore, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// Complete moves an ongoing chore to completed. It reports false, without
// error, when the chore does not exist or is not ongoing.
func (s *ChoreStore) Complete(ctx context.Context, id int64, completedAt time.Time, imageURL *string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chores SET status = ?, completed_at = ?, image_url = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		string(model.ChoreCompleted), completedAt.UTC(), nullString(imageURL), id, string(model.ChoreOngoing),
	)
	if err != nil {
		return false, fmt.Errorf("complete chore: %w", err)
	}
	return affected(result)
}

// Pass moves an ongoing chore to passed with the given reason. It reports
// false, without error, when the chore does not exist or is not ongoing.
func (s *ChoreStore) Pass(ctx context.Context, id int64, reason string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chores SET status = ?, drop_reason = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		string(model.ChorePassed), reason, id, string(model.ChoreOngoing),
	)
	if err != nil {
		return false, fmt.Errorf("pass chore: %w", err)
	}
	return affected(result)
}

func (s *ChoreStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func withStatuses(query, column string, args []any, statuses []model.ChoreStatus) (string, []any) {
	if len(statuses) == 0 {
		return query, args
	}
	query += ` AND ` + column + ` IN (` + placeholders(len(statuses)) + `)`
	for _, st := range statuses {
		args = append(args, string(st))
	}
	return query, args
}
