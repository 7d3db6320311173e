package models

import "time"

// Default preference values applied when a row is first created.
const (
	DefaultSoundID         = "default"
	DefaultVolume          = 80
	DefaultQuietHoursStart = "22:00"
	DefaultQuietHoursEnd   = "08:00"
	DefaultTimezone        = "UTC"
)

// UserPreferences stores per-user notification settings.
type UserPreferences struct {
	ID                   int64     `json:"-"`
	UserID               int64     `json:"-"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	NotificationSound    string    `json:"notificationSound"`
	NotificationVolume   int       `json:"notificationVolume"`
	QuietHoursEnabled    bool      `json:"quietHoursEnabled"`
	QuietHoursStart      string    `json:"quietHoursStart"`
	QuietHoursEnd        string    `json:"quietHoursEnd"`
	EmailNotifications   bool      `json:"emailNotifications"`
	BrowserNotifications bool      `json:"browserNotifications"`
	Timezone             string    `json:"timezone"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// DefaultUserPreferences returns the values a fresh row is created with.
func DefaultUserPreferences(userID int64) *UserPreferences {
	return &UserPreferences{
		UserID:               userID,
		NotificationsEnabled: true,
		NotificationSound:    DefaultSoundID,
		NotificationVolume:   DefaultVolume,
		QuietHoursEnabled:    false,
		QuietHoursStart:      DefaultQuietHoursStart,
		QuietHoursEnd:        DefaultQuietHoursEnd,
		EmailNotifications:   true,
		BrowserNotifications: true,
		Timezone:             DefaultTimezone,
	}
}

// PreferencesUpdate is a partial update; nil fields keep their stored value.
type PreferencesUpdate struct {
	NotificationsEnabled *bool   `json:"notificationsEnabled"`
	NotificationSound    *string `json:"notificationSound"`
	NotificationVolume   *int    `json:"notificationVolume"`
	QuietHoursEnabled    *bool   `json:"quietHoursEnabled"`
	QuietHoursStart      *string `json:"quietHoursStart"`
	QuietHoursEnd        *string `json:"quietHoursEnd"`
	EmailNotifications   *bool   `json:"emailNotifications"`
	BrowserNotifications *bool   `json:"browserNotifications"`
	Timezone             *string `json:"timezone"`
}
