package store

import (
	"context"
	"fmt"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser is a message sent by the account owner.
	RoleUser Role = "user"
	// RoleModel is a message produced by the chatbot.
	RoleModel Role = "model"
)

// Message is a single turn in a user's chat history.
type Message struct {
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// AppendMessage persists a single chat message for the given user.
func (s *Store) AppendMessage(ctx context.Context, userID int64, role Role, content string) error {
	const q = `INSERT INTO chat_messages (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, userID, string(role), content, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// AppendExchange persists a question/answer pair in one transaction so a
// user turn can never be recorded without its model turn. The history stays
// an alternating sequence of complete exchanges even when the process dies
// between the two inserts.
func (s *Store) AppendExchange(ctx context.Context, userID int64, question, answer string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: append exchange: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO chat_messages (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, q, userID, string(RoleUser), question, now); err != nil {
		return fmt.Errorf("store: append exchange user turn: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, userID, string(RoleModel), answer, now); err != nil {
		return fmt.Errorf("store: append exchange model turn: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: append exchange commit: %w", err)
	}
	return nil
}

// RecentMessages returns the most recent n messages for the user, ordered
// oldest-first. Uses a subquery to select the tail then re-order for prompt
// assembly.
func (s *Store) RecentMessages(ctx context.Context, userID int64, n int) ([]Message, error) {
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   chat_messages
    WHERE  user_id = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, userID, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts int64
		var role string
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: recent messages scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(ts, 0)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent messages rows: %w", err)
	}
	return msgs, nil
}
