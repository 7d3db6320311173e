package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"calnotify/internal/domain"
	"calnotify/internal/models"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ListNotifications returns the user's notifications, newest first, with the
// titles of linked events and tasks.
func (db *DB) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	query := `
		SELECT n.id, n.user_id, n.title, n.message, n.type, n.is_read, n.read_at,
		       n.created_at, n.event_id, n.task_id, n.reminder_id,
		       e.title, t.title
		FROM notifications n
		LEFT JOIN events e ON n.event_id = e.id
		LEFT JOIN tasks t ON n.task_id = t.id
		WHERE n.user_id = ?`
	if unreadOnly {
		query += ` AND n.is_read = 0`
	}
	query += ` ORDER BY n.created_at DESC, n.id DESC LIMIT ? OFFSET ?`

	rows, err := db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var (
			n                      models.Notification
			readAt                 sql.NullTime
			eventID, taskID, remID sql.NullInt64
			eventTitle, taskTitle  sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &readAt,
			&n.CreatedAt, &eventID, &taskID, &remID, &eventTitle, &taskTitle); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		n.EventID = nullInt64Ptr(eventID)
		n.TaskID = nullInt64Ptr(taskID)
		n.ReminderID = nullInt64Ptr(remID)
		if n.EventID != nil {
			n.Event = &models.LinkedRef{ID: *n.EventID, Title: eventTitle.String}
		}
		if n.TaskID != nil {
			n.Task = &models.LinkedRef{ID: *n.TaskID, Title: taskTitle.String}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnreadNotifications returns the number of unread notifications of the user.
func (db *DB) CountUnreadNotifications(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead marks one notification owned by userID as read.
// The first read timestamp is kept when the notification was already read.
func (db *DB) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = 1, read_at = COALESCE(read_at, ?)
		WHERE id = ? AND user_id = ?`,
		time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireAffected(res)
}

// MarkAllNotificationsRead marks every unread notification of the user as read.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = 1, read_at = ?
		WHERE user_id = ? AND is_read = 0`,
		time.Now().UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}

// DeleteNotification removes one notification owned by userID.
func (db *DB) DeleteNotification(ctx context.Context, id, userID int64) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM notifications WHERE id = ? AND user_id = ?",
		id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return requireAffected(res)
}

// ClearNotifications removes all notifications owned by userID.
func (db *DB) ClearNotifications(ctx context.Context, userID int64) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	return res.RowsAffected()
}

// CreateNotification inserts a notification for userID and returns the stored row.
func (db *DB) CreateNotification(ctx context.Context, userID int64, in models.NewNotification) (*models.Notification, error) {
	return insertNotification(ctx, db.DB, userID, in)
}

func insertNotification(ctx context.Context, ex execer, userID int64, in models.NewNotification) (*models.Notification, error) {
	if in.Type == "" {
		in.Type = models.NotificationTypeInfo
	}
	now := time.Now().UTC()

	res, err := ex.ExecContext(ctx, `
		INSERT INTO notifications (user_id, title, message, type, event_id, task_id, reminder_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, in.Title, in.Message, in.Type,
		int64PtrArg(in.EventID), int64PtrArg(in.TaskID), int64PtrArg(in.ReminderID), now)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert notification id: %w", err)
	}

	return &models.Notification{
		ID:         id,
		UserID:     userID,
		Title:      in.Title,
		Message:    in.Message,
		Type:       in.Type,
		CreatedAt:  now,
		EventID:    in.EventID,
		TaskID:     in.TaskID,
		ReminderID: in.ReminderID,
	}, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
