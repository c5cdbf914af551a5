package model

import "time"

type MachineStatus string

const (
	MachineAvailable MachineStatus = "available"
	MachineBusy      MachineStatus = "busy"
)

type Machine struct {
	ID          int64         `json:"id"`
	HouseholdID int64         `json:"household_id"`
	Name        string        `json:"name"`
	ImageURL    *string       `json:"image_url,omitempty"`
	Status      MachineStatus `json:"status"`
	OccupiedBy  *int64        `json:"occupied_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
