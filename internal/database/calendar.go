package database

import (
	"context"
	"fmt"
	"time"
)

// The calendar service owns events, tasks and reminders. These writers exist
// for local seeding and tests.

// CreateEvent inserts a calendar event and returns its id.
func (db *DB) CreateEvent(ctx context.Context, userID int64, title string, startAt time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		"INSERT INTO events (user_id, title, start_at) VALUES (?, ?, ?)",
		userID, title, startAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

// CreateTask inserts a task and returns its id.
func (db *DB) CreateTask(ctx context.Context, userID int64, title string) (int64, error) {
	res, err := db.ExecContext(ctx,
		"INSERT INTO tasks (user_id, title) VALUES (?, ?)",
		userID, title)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return res.LastInsertId()
}

// CreateReminder attaches a reminder to an event and returns its id.
func (db *DB) CreateReminder(ctx context.Context, eventID int64, channel string, leadMinutes int, message string) (int64, error) {
	var msg any
	if message != "" {
		msg = message
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO reminders (event_id, channel, lead_minutes, message) VALUES (?, ?, ?, ?)",
		eventID, channel, leadMinutes, msg)
	if err != nil {
		return 0, fmt.Errorf("insert reminder: %w", err)
	}
	return res.LastInsertId()
}

// SetReminderActive toggles whether a reminder is eligible for delivery.
func (db *DB) SetReminderActive(ctx context.Context, id int64, active bool) error {
	_, err := db.ExecContext(ctx, "UPDATE reminders SET active = ? WHERE id = ?", active, id)
	return err
}
