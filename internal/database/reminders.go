package database

import (
	"context"
	"fmt"
	"time"

	"calnotify/internal/domain"
	"calnotify/internal/models"
)

// FindDueReminders returns active, unsent in-app reminders whose window
// [event start - lead time, event start) contains now. Rows come back in
// store order; callers must not rely on any particular ordering.
func (db *DB) FindDueReminders(ctx context.Context, now time.Time) ([]models.DueReminder, error) {
	nowUnix := now.Unix()
	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.event_id, e.user_id, e.title, e.start_at, r.lead_minutes, COALESCE(r.message, '')
		FROM reminders r
		JOIN events e ON r.event_id = e.id
		WHERE r.active = 1
		  AND r.sent = 0
		  AND r.channel = ?
		  AND CAST(strftime('%s', e.start_at) AS INTEGER) - r.lead_minutes * 60 <= ?
		  AND CAST(strftime('%s', e.start_at) AS INTEGER) > ?`,
		models.ReminderChannelInApp, nowUnix, nowUnix)
	if err != nil {
		return nil, fmt.Errorf("find due reminders: %w", err)
	}
	defer rows.Close()

	var due []models.DueReminder
	for rows.Next() {
		var r models.DueReminder
		if err := rows.Scan(&r.ID, &r.EventID, &r.UserID, &r.EventTitle, &r.EventStart, &r.LeadMinutes, &r.Message); err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		due = append(due, r)
	}
	return due, rows.Err()
}

// DeliverReminder marks the reminder sent and creates its notification in one
// transaction. The sent flag is claimed first, so a reminder delivered by a
// concurrent run yields domain.ErrReminderAlreadySent and no second notification.
func (db *DB) DeliverReminder(ctx context.Context, r *models.DueReminder, now time.Time) (*models.Notification, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin deliver reminder: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE reminders SET sent = 1, sent_at = ?
		WHERE id = ? AND sent = 0 AND active = 1`,
		now.UTC(), r.ID)
	if err != nil {
		return nil, fmt.Errorf("mark reminder sent: %w", err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if claimed == 0 {
		return nil, domain.ErrReminderAlreadySent
	}

	eventID, reminderID := r.EventID, r.ID
	n, err := insertNotification(ctx, tx, r.UserID, models.NewNotification{
		Title:      r.NotificationTitle(),
		Message:    r.NotificationMessage(),
		Type:       models.NotificationTypeReminder,
		EventID:    &eventID,
		ReminderID: &reminderID,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deliver reminder: %w", err)
	}
	return n, nil
}
