package domain

import (
	"context"
	"time"

	"calnotify/internal/models"
)

// NotificationRepository is the user-scoped notification store.
type NotificationRepository interface {
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID int64) (int64, error)
	MarkNotificationRead(ctx context.Context, id, userID int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error)
	DeleteNotification(ctx context.Context, id, userID int64) error
	ClearNotifications(ctx context.Context, userID int64) (int64, error)
	CreateNotification(ctx context.Context, userID int64, in models.NewNotification) (*models.Notification, error)
}

type PreferenceRepository interface {
	GetOrCreatePreferences(ctx context.Context, userID int64) (*models.UserPreferences, error)
	UpsertPreferences(ctx context.Context, userID int64, upd models.PreferencesUpdate) (*models.UserPreferences, error)
}

type SoundRepository interface {
	ListCustomSounds(ctx context.Context, userID int64) ([]models.CustomSound, error)
	GetCustomSound(ctx context.Context, id, userID int64) (*models.CustomSound, error)
	CountCustomSounds(ctx context.Context, userID int64) (int, error)
	CreateCustomSound(ctx context.Context, s *models.CustomSound) error
	DeleteCustomSound(ctx context.Context, id, userID int64) (*models.CustomSound, int64, error)
}

type ReminderRepository interface {
	FindDueReminders(ctx context.Context, now time.Time) ([]models.DueReminder, error)
	DeliverReminder(ctx context.Context, r *models.DueReminder, now time.Time) (*models.Notification, error)
}
