package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// dateLayout is the storage form of last_completed_at. Only the calendar day
// matters, so the time of day is never stored.
const dateLayout = "2006-01-02"

// Habit is a tracked habit owned by a single user.
type Habit struct {
	ID          int64
	Name        string
	Description string
	OwnerID     int64

	// LastCompletedAt is the UTC day the habit was last marked complete,
	// or nil when it has never been completed (or was un-toggled).
	LastCompletedAt *time.Time
}

// CompletedOn reports whether the habit was completed on the given day.
func (h *Habit) CompletedOn(day time.Time) bool {
	return h.LastCompletedAt != nil &&
		h.LastCompletedAt.Format(dateLayout) == day.UTC().Format(dateLayout)
}

// CreateHabit inserts a new habit for the given owner and returns it.
func (s *Store) CreateHabit(ctx context.Context, ownerID int64, name, description string) (*Habit, error) {
	const q = `INSERT INTO habits (name, description, owner_id) VALUES (?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, name, description, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: create habit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create habit id: %w", err)
	}
	return &Habit{ID: id, Name: name, Description: description, OwnerID: ownerID}, nil
}

// HabitsForUser returns the owner's habits ordered by ID, honoring the
// skip/limit pagination window.
func (s *Store) HabitsForUser(ctx context.Context, ownerID int64, skip, limit int) ([]Habit, error) {
	const q = `
SELECT id, name, description, owner_id, last_completed_at
FROM   habits
WHERE  owner_id = ?
ORDER  BY id ASC
LIMIT  ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, ownerID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("store: habits for user: %w", err)
	}
	defer rows.Close()

	var habits []Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: habits rows: %w", err)
	}
	return habits, nil
}

// HabitByID returns the habit only when it belongs to ownerID, otherwise
// ErrNotFound. Habits of other users are indistinguishable from missing rows.
func (s *Store) HabitByID(ctx context.Context, ownerID, id int64) (*Habit, error) {
	const q = `
SELECT id, name, description, owner_id, last_completed_at
FROM   habits
WHERE  id = ? AND owner_id = ?`

	row := s.db.QueryRowContext(ctx, q, id, ownerID)
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// UpdateHabit changes the name and description of an owned habit and returns
// the updated row, or ErrNotFound.
func (s *Store) UpdateHabit(ctx context.Context, ownerID, id int64, name, description string) (*Habit, error) {
	const q = `UPDATE habits SET name = ?, description = ? WHERE id = ? AND owner_id = ?`
	res, err := s.db.ExecContext(ctx, q, name, description, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: update habit: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("store: update habit: %w", err)
	} else if n == 0 {
		return nil, ErrNotFound
	}
	return s.HabitByID(ctx, ownerID, id)
}

// ToggleHabit flips today's completion state of an owned habit: a habit
// completed today becomes not completed, anything else becomes completed
// today. Days are compared in UTC.
func (s *Store) ToggleHabit(ctx context.Context, ownerID, id int64) (*Habit, error) {
	h, err := s.HabitByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var value any
	if h.CompletedOn(now) {
		value = nil
	} else {
		value = now.Format(dateLayout)
	}

	const q = `UPDATE habits SET last_completed_at = ? WHERE id = ? AND owner_id = ?`
	if _, err := s.db.ExecContext(ctx, q, value, id, ownerID); err != nil {
		return nil, fmt.Errorf("store: toggle habit: %w", err)
	}
	return s.HabitByID(ctx, ownerID, id)
}

// DeleteHabit removes an owned habit, or returns ErrNotFound.
func (s *Store) DeleteHabit(ctx context.Context, ownerID, id int64) error {
	const q = `DELETE FROM habits WHERE id = ? AND owner_id = ?`
	res, err := s.db.ExecContext(ctx, q, id, ownerID)
	if err != nil {
		return fmt.Errorf("store: delete habit: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("store: delete habit: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanHabit.
type scanner interface {
	Scan(dest ...any) error
}

// scanHabit reads one habit row, converting the stored date string.
func scanHabit(row scanner) (*Habit, error) {
	var h Habit
	var completed sql.NullString
	if err := row.Scan(&h.ID, &h.Name, &h.Description, &h.OwnerID, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan habit: %w", err)
	}
	if completed.Valid {
		day, err := time.ParseInLocation(dateLayout, completed.String, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("store: parse last_completed_at %q: %w", completed.String, err)
		}
		h.LastCompletedAt = &day
	}
	return &h, nil
}
