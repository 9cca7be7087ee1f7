package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SaveMessage appends m to the chat log, filling in ID and CreatedAt when
// they are empty, and returns the stored message.
func (s *Store) SaveMessage(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, created_at, sender, content, backend, mood)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.CreatedAt.Format(timeLayout), string(m.Sender), m.Content, m.Backend, m.Mood,
	)
	if err != nil {
		return Message{}, fmt.Errorf("saving message: %w", err)
	}
	return m, nil
}

// GetMessage returns the message with id.
func (s *Store) GetMessage(ctx context.Context, id string) (Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, sender, content, backend, mood
		FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	return m, err
}

// RecentMessages returns up to limit of the newest messages, oldest first.
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, sender, content, backend, mood FROM (
			SELECT rowid AS seq, id, created_at, sender, content, backend, mood
			FROM messages ORDER BY created_at DESC, seq DESC LIMIT ?
		) ORDER BY created_at ASC, seq ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessages returns the size of the chat log.
func (s *Store) CountMessages(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

// ClearMessages deletes the whole chat log.
func (s *Store) ClearMessages(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(sc scanner) (Message, error) {
	var m Message
	var createdAt string
	if err := sc.Scan(&m.ID, &createdAt, &m.Sender, &m.Content, &m.Backend, &m.Mood); err != nil {
		return Message{}, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Message{}, fmt.Errorf("parsing created_at: %w", err)
	}
	m.CreatedAt = t
	return m, nil
}
