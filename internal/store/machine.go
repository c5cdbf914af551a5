package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/roomies/internal/model"
)

type MachineStore struct {
	db DBTX
}

func NewMachineStore(db DBTX) *MachineStore {
	return &MachineStore{db: db}
}

func scanMachine(sc scanner) (*model.Machine, error) {
	var m model.Machine
	var status string
	var imageURL sql.NullString
	var occupiedBy sql.NullInt64

	err := sc.Scan(&m.ID, &m.HouseholdID, &m.Name, &imageURL, &status, &occupiedBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = model.MachineStatus(status)
	m.ImageURL = stringPtr(imageURL)
	m.OccupiedBy = int64Ptr(occupiedBy)
	return &m, nil
}

const machineCols = `id, household_id, name, image_url, status, occupied_by, created_at, updated_at`

func (s *MachineStore) Create(ctx context.Context, householdID int64, name string, imageURL *string) (*model.Machine, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO machines (household_id, name, image_url, status) VALUES (?, ?, ?, ?)`,
		householdID, name, nullString(imageURL), string(model.MachineAvailable),
	)
	if err != nil {
		return nil, fmt.Errorf("insert machine: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MachineStore) GetByID(ctx context.Context, id int64) (*model.Machine, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+machineCols+` FROM machines WHERE id = ?`, id)
	m, err := scanMachine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get machine: %w", err)
	}
	return m, nil
}

// ListByHousehold returns machines in creation order.
func (s *MachineStore) ListByHousehold(ctx context.Context, householdID int64) ([]model.Machine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+machineCols+` FROM machines WHERE household_id = ? ORDER BY created_at ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var machines []model.Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		machines = append(machines, *m)
	}
	return machines, rows.Err()
}

// Occupy marks the machine busy for personID only if it is currently
// available. It reports whether the update applied.
func (s *MachineStore) Occupy(ctx context.Context, id, personID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE machines SET status = ?, occupied_by = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		string(model.MachineBusy), personID, id, string(model.MachineAvailable),
	)
	if err != nil {
		return false, fmt.Errorf("occupy machine: %w", err)
	}
	return affected(result)
}

// Release frees the machine only if personID currently occupies it. It
// reports whether the update applied.
func (s *MachineStore) Release(ctx context.Context, id, personID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE machines SET status = ?, occupied_by = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ? AND occupied_by = ?`,
		string(model.MachineAvailable), id, string(model.MachineBusy), personID,
	)
	if err != nil {
		return false, fmt.Errorf("release machine: %w", err)
	}
	return affected(result)
}

// ReleaseAllFor frees every machine in householdID occupied by personID.
func (s *MachineStore) ReleaseAllFor(ctx context.Context, householdID, personID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE machines SET status = ?, occupied_by = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE household_id = ? AND occupied_by = ?`,
		string(model.MachineAvailable), householdID, personID,
	)
	if err != nil {
		return fmt.Errorf("release machines: %w", err)
	}
	return nil
}

func (s *MachineStore) WithTx(tx *sql.Tx) *MachineStore {
	return &MachineStore{db: tx}
}
