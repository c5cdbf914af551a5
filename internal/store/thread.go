package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/roomies/internal/model"
)

type ThreadStore struct {
	db DBTX
}

func NewThreadStore(db DBTX) *ThreadStore {
	return &ThreadStore{db: db}
}

func scanThread(sc scanner) (*model.Thread, error) {
	var t model.Thread
	var choreID sql.NullInt64
	err := sc.Scan(&t.ID, &t.HouseholdID, &choreID, &t.AuthorID, &t.Title, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.ChoreID = int64Ptr(choreID)
	return &t, nil
}

func scanMessage(sc scanner) (*model.Message, error) {
	var m model.Message
	err := sc.Scan(&m.ID, &m.ThreadID, &m.AuthorID, &m.Body, &m.SentAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const threadCols = `id, household_id, chore_id, author_id, title, created_at`
const messageCols = `id, thread_id, author_id, body, sent_at`

func (s *ThreadStore) Create(ctx context.Context, householdID int64, choreID *int64, authorID int64, title string) (*model.Thread, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (household_id, chore_id, author_id, title) VALUES (?, ?, ?, ?)`,
		householdID, nullInt64(choreID), authorID, title,
	)
	if err != nil {
		return nil, fmt.Errorf("insert thread: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ThreadStore) GetByID(ctx context.Context, id int64) (*model.Thread, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+threadCols+` FROM threads WHERE id = ?`, id)
	t, err := scanThread(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return t, nil
}

// List returns the household's threads newest first, optionally limited to
// one chore.
func (s *ThreadStore) List(ctx context.Context, householdID int64, choreID *int64) ([]model.Thread, error) {
	query := `SELECT ` + threadCols + ` FROM threads WHERE household_id = ?`
	args := []any{householdID}
	if choreID != nil {
		query += ` AND chore_id = ?`
		args = append(args, *choreID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var threads []model.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, *t)
	}
	return threads, rows.Err()
}

func (s *ThreadStore) AddMessage(ctx context.Context, threadID, authorID int64, body string) (*model.Message, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (thread_id, author_id, body) VALUES (?, ?, ?)`,
		threadID, authorID, body,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+messageCols+` FROM messages WHERE id = ?`, id)
	return scanMessage(row)
}

// ListMessages returns a thread's messages oldest first.
func (s *ThreadStore) ListMessages(ctx context.Context, threadID int64) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageCols+` FROM messages WHERE thread_id = ? ORDER BY sent_at ASC, id ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}
