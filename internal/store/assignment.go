package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/roomies/internal/model"
)

type AssignmentStore struct {
	db DBTX
}

func NewAssignmentStore(db DBTX) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func (s *AssignmentStore) WithTx(tx *sql.Tx) *AssignmentStore {
	return &AssignmentStore{db: tx}
}

const assignmentCols = `chore_id, person_id, created_at`

// Add links each person to the chore. Existing pairs are left untouched, so
// repeating an assignment never creates a duplicate row.
func (s *AssignmentStore) Add(ctx context.Context, choreID int64, personIDs []int64) error {
	for _, pid := range personIDs {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO chore_assignments (chore_id, person_id) VALUES (?, ?)
			 ON CONFLICT (chore_id, person_id) DO NOTHING`,
			choreID, pid,
		)
		if err != nil {
			return fmt.Errorf("insert assignment %d/%d: %w", choreID, pid, err)
		}
	}
	return nil
}

// ListPeople returns the chore's assignees ordered by display name then id.
func (s *AssignmentStore) ListPeople(ctx context.Context, choreID int64) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.display_name, p.household_id, p.created_at, p.updated_at
		 FROM people p
		 JOIN chore_assignments a ON a.person_id = p.id
		 WHERE a.chore_id = ?
		 ORDER BY p.display_name COLLATE NOCASE ASC, p.id ASC`,
		choreID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	var people []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, *p)
	}
	return people, rows.Err()
}

// ListForChores returns every assignment row for the given chores.
func (s *AssignmentStore) ListForChores(ctx context.Context, choreIDs []int64) ([]model.Assignment, error) {
	if len(choreIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentCols+` FROM chore_assignments
		 WHERE chore_id IN (`+placeholders(len(choreIDs))+`)
		 ORDER BY chore_id ASC, person_id ASC`,
		int64Args(choreIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ChoreID, &a.PersonID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AssignmentStore) CountForChore(ctx context.Context, choreID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chore_assignments WHERE chore_id = ?`, choreID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return n, nil
}

func (s *AssignmentStore) DeleteForChore(ctx context.Context, choreID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chore_assignments WHERE chore_id = ?`, choreID)
	if err != nil {
		return fmt.Errorf("delete assignments for chore: %w", err)
	}
	return nil
}

// DeleteForPersonInHousehold removes the person's assignments on chores that
// belong to householdID and returns the ids of the chores they were on.
func (s *AssignmentStore) DeleteForPersonInHousehold(ctx context.Context, personID, householdID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.chore_id FROM chore_assignments a
		 JOIN chores c ON c.id = a.chore_id
		 WHERE a.person_id = ? AND c.household_id = ?
		 ORDER BY a.chore_id ASC`,
		personID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments for person: %w", err)
	}
	defer rows.Close()

	var choreIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		choreIDs = append(choreIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assignments for person: %w", err)
	}
	if len(choreIDs) == 0 {
		return nil, nil
	}

	args := []any{personID}
	for _, id := range choreIDs {
		args = append(args, id)
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM chore_assignments WHERE person_id = ? AND chore_id IN (`+placeholders(len(choreIDs))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("delete assignments for person: %w", err)
	}
	return choreIDs, nil
}
