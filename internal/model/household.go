package model

import "time"

type Household struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	InviteCode string    `json:"invite_code"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Person is a household member. HouseholdID is nil until the person joins or
// creates a household; leaving clears it again.
type Person struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	HouseholdID *int64    `json:"household_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
