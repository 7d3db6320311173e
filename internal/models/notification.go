package models

import "time"

// Notification types.
const (
	NotificationTypeInfo     = "info"
	NotificationTypeReminder = "reminder"
	NotificationTypeWarning  = "warning"
	NotificationTypeSuccess  = "success"
	NotificationTypeError    = "error"
)

// IsValidNotificationType reports whether t is a known notification type.
func IsValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeInfo, NotificationTypeReminder, NotificationTypeWarning,
		NotificationTypeSuccess, NotificationTypeError:
		return true
	default:
		return false
	}
}

// LinkedRef is a reference to a calendar entity with its title.
type LinkedRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Notification is a message shown to a single user.
type Notification struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"-"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Type       string     `json:"type"`
	Read       bool       `json:"read"`
	ReadAt     *time.Time `json:"readAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	EventID    *int64     `json:"-"`
	TaskID     *int64     `json:"-"`
	ReminderID *int64     `json:"reminderId,omitempty"`

	// Filled by list queries that join the calendar tables.
	Event *LinkedRef `json:"event"`
	Task  *LinkedRef `json:"task"`
}

// NewNotification carries the fields accepted when creating a notification.
type NewNotification struct {
	Title      string
	Message    string
	Type       string
	EventID    *int64
	TaskID     *int64
	ReminderID *int64
}

// NotificationPage is one page of a user's notifications plus the unread total.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int64          `json:"unreadCount"`
}
