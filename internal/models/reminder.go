package models

import (
	"fmt"
	"time"
)

// ReminderChannelInApp is the channel handled by the reminder processor.
const ReminderChannelInApp = "in_app"

// DueReminder is a reminder joined with its event, ready to become a notification.
type DueReminder struct {
	ID          int64
	EventID     int64
	UserID      int64
	EventTitle  string
	EventStart  time.Time
	LeadMinutes int
	Message     string
}

// NotificationTitle is the title of the notification emitted for the reminder.
func (r *DueReminder) NotificationTitle() string {
	return "Reminder: " + r.EventTitle
}

// NotificationMessage returns the custom message or the default template.
func (r *DueReminder) NotificationMessage() string {
	if r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf("Your event \"%s\" is coming up in %d minutes.", r.EventTitle, r.LeadMinutes)
}

// IsDue reports whether now falls within [start - lead, start).
func (r *DueReminder) IsDue(now time.Time) bool {
	opens := r.EventStart.Add(-time.Duration(r.LeadMinutes) * time.Minute)
	return !now.Before(opens) && now.Before(r.EventStart)
}
