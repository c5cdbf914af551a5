package model

import "time"

type Thread struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	ChoreID     *int64    `json:"chore_id"`
	AuthorID    int64     `json:"author_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
}

type Message struct {
	ID       int64     `json:"id"`
	ThreadID int64     `json:"thread_id"`
	AuthorID int64     `json:"author_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}
