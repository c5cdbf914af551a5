package model

import "time"

type ChoreStatus string

const (
	ChoreOngoing   ChoreStatus = "ongoing"
	ChoreCompleted ChoreStatus = "completed"
	ChorePassed    ChoreStatus = "passed"
)

// DateLayout is the storage and wire layout of Chore.DueDate.
const DateLayout = "2006-01-02"

type Chore struct {
	ID          int64       `json:"id"`
	HouseholdID int64       `json:"household_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	DueDate     time.Time   `json:"due_date"`
	Status      ChoreStatus `json:"status"`
	DropReason  *string     `json:"drop_reason,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	ImageURL    *string     `json:"image_url,omitempty"`
	RepeatMask  int         `json:"repeat_mask"`
	CreatedBy   *int64      `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Assignment struct {
	ChoreID   int64     `json:"chore_id"`
	PersonID  int64     `json:"person_id"`
	CreatedAt time.Time `json:"created_at"`
}
