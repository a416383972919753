package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// User is a registered account. HashedPassword is a bcrypt hash and must
// never leave the server.
type User struct {
	ID             int64
	Username       string
	HashedPassword string
}

// CreateUser inserts a new account and returns it with its assigned ID.
// Returns ErrUsernameTaken when the username already exists.
func (s *Store) CreateUser(ctx context.Context, username, hashedPassword string) (*User, error) {
	const q = `INSERT INTO users (username, hashed_password) VALUES (?, ?)`
	res, err := s.db.ExecContext(ctx, q, username, hashedPassword)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create user id: %w", err)
	}
	return &User{ID: id, Username: username, HashedPassword: hashedPassword}, nil
}

// UserByUsername returns the account with the given username, or ErrNotFound.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	const q = `SELECT id, username, hashed_password FROM users WHERE username = ?`
	var u User
	err := s.db.QueryRowContext(ctx, q, username).Scan(&u.ID, &u.Username, &u.HashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: user by username: %w", err)
	}
	return &u, nil
}

// UserByID returns the account with the given ID, or ErrNotFound.
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	const q = `SELECT id, username, hashed_password FROM users WHERE id = ?`
	var u User
	err := s.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Username, &u.HashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: user by id: %w", err)
	}
	return &u, nil
}
