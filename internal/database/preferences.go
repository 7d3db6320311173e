package database

import (
	"context"
	"fmt"
	"time"

	"calnotify/internal/models"
)

const preferencesColumns = `id, user_id, notifications_enabled, notification_sound, notification_volume,
		quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
		email_notifications, browser_notifications, timezone, updated_at`

// GetOrCreatePreferences returns the user's preferences, inserting the
// default row first when none exists. The insert is a single conflict-ignoring
// statement, so concurrent first reads never create two rows.
func (db *DB) GetOrCreatePreferences(ctx context.Context, userID int64) (*models.UserPreferences, error) {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		userID, now, now)
	if err != nil {
		return nil, fmt.Errorf("ensure preferences: %w", err)
	}
	return db.getPreferences(ctx, userID)
}

// UpsertPreferences applies a partial update. Absent rows are created from the
// defaults overlaid with the supplied fields; existing rows only change the
// supplied fields.
func (db *DB) UpsertPreferences(ctx context.Context, userID int64, upd models.PreferencesUpdate) (*models.UserPreferences, error) {
	initial := models.DefaultUserPreferences(userID)
	applyUpdate(initial, upd)
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx, `
		INSERT INTO user_preferences (
			user_id, notifications_enabled, notification_sound, notification_volume,
			quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
			email_notifications, browser_notifications, timezone, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			notifications_enabled = COALESCE(?, notifications_enabled),
			notification_sound = COALESCE(?, notification_sound),
			notification_volume = COALESCE(?, notification_volume),
			quiet_hours_enabled = COALESCE(?, quiet_hours_enabled),
			quiet_hours_start = COALESCE(?, quiet_hours_start),
			quiet_hours_end = COALESCE(?, quiet_hours_end),
			email_notifications = COALESCE(?, email_notifications),
			browser_notifications = COALESCE(?, browser_notifications),
			timezone = COALESCE(?, timezone),
			updated_at = excluded.updated_at`,
		userID, initial.NotificationsEnabled, initial.NotificationSound, initial.NotificationVolume,
		initial.QuietHoursEnabled, initial.QuietHoursStart, initial.QuietHoursEnd,
		initial.EmailNotifications, initial.BrowserNotifications, initial.Timezone, now, now,
		upd.NotificationsEnabled, upd.NotificationSound, upd.NotificationVolume,
		upd.QuietHoursEnabled, upd.QuietHoursStart, upd.QuietHoursEnd,
		upd.EmailNotifications, upd.BrowserNotifications, upd.Timezone,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert preferences: %w", err)
	}
	return db.getPreferences(ctx, userID)
}

func (db *DB) getPreferences(ctx context.Context, userID int64) (*models.UserPreferences, error) {
	var p models.UserPreferences
	err := db.QueryRowContext(ctx,
		"SELECT "+preferencesColumns+" FROM user_preferences WHERE user_id = ?",
		userID,
	).Scan(&p.ID, &p.UserID, &p.NotificationsEnabled, &p.NotificationSound, &p.NotificationVolume,
		&p.QuietHoursEnabled, &p.QuietHoursStart, &p.QuietHoursEnd,
		&p.EmailNotifications, &p.BrowserNotifications, &p.Timezone, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return &p, nil
}

func resetSoundPreference(ctx context.Context, ex execer, userID int64, soundID string) (int64, error) {
	res, err := ex.ExecContext(ctx, `
		UPDATE user_preferences
		SET notification_sound = ?, updated_at = ?
		WHERE user_id = ? AND notification_sound = ?`,
		models.DefaultSoundID, time.Now().UTC(), userID, soundID)
	if err != nil {
		return 0, fmt.Errorf("reset sound preference: %w", err)
	}
	return res.RowsAffected()
}

func applyUpdate(p *models.UserPreferences, upd models.PreferencesUpdate) {
	if upd.NotificationsEnabled != nil {
		p.NotificationsEnabled = *upd.NotificationsEnabled
	}
	if upd.NotificationSound != nil {
		p.NotificationSound = *upd.NotificationSound
	}
	if upd.NotificationVolume != nil {
		p.NotificationVolume = *upd.NotificationVolume
	}
	if upd.QuietHoursEnabled != nil {
		p.QuietHoursEnabled = *upd.QuietHoursEnabled
	}
	if upd.QuietHoursStart != nil {
		p.QuietHoursStart = *upd.QuietHoursStart
	}
	if upd.QuietHoursEnd != nil {
		p.QuietHoursEnd = *upd.QuietHoursEnd
	}
	if upd.EmailNotifications != nil {
		p.EmailNotifications = *upd.EmailNotifications
	}
	if upd.BrowserNotifications != nil {
		p.BrowserNotifications = *upd.BrowserNotifications
	}
	if upd.Timezone != nil {
		p.Timezone = *upd.Timezone
	}
}
