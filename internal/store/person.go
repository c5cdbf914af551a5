package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/roomies/internal/model"
)

type PersonStore struct {
	db DBTX
}

func NewPersonStore(db DBTX) *PersonStore {
	return &PersonStore{db: db}
}

func (s *PersonStore) WithTx(tx *sql.Tx) *PersonStore {
	return &PersonStore{db: tx}
}

func scanPerson(sc scanner) (*model.Person, error) {
	var p model.Person
	var householdID sql.NullInt64
	err := sc.Scan(&p.ID, &p.DisplayName, &householdID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.HouseholdID = int64Ptr(householdID)
	return &p, nil
}

const personCols = `id, display_name, household_id, created_at, updated_at`

func (s *PersonStore) Create(ctx context.Context, displayName string) (*model.Person, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO people (display_name) VALUES (?)`, displayName)
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *PersonStore) GetByID(ctx context.Context, id int64) (*model.Person, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+personCols+` FROM people WHERE id = ?`, id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// SetHousehold moves the person into householdID, or out of any household
// when householdID is nil.
func (s *PersonStore) SetHousehold(ctx context.Context, id int64, householdID *int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE people SET household_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullInt64(householdID), id,
	)
	if err != nil {
		return fmt.Errorf("set household: %w", err)
	}
	return nil
}

// ListByHousehold returns members ordered by display name, ties broken by id.
func (s *PersonStore) ListByHousehold(ctx context.Context, householdID int64) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+personCols+` FROM people WHERE household_id = ? ORDER BY display_name COLLATE NOCASE ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
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
