package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"calnotify/internal/domain"
	"calnotify/internal/export"
	"calnotify/internal/metrics"
	"calnotify/internal/models"
	"calnotify/internal/service"
)

// parseListQuery reads unread_only, limit and offset.
func parseListQuery(r *http.Request) (service.ListQuery, error) {
	q := service.DefaultListQuery()
	values := r.URL.Query()

	switch values.Get("unread_only") {
	case "true", "1":
		q.UnreadOnly = true
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, domain.NewValidationError("limit", "must be a positive integer")
		}
		q.Limit = limit
	}
	if raw := values.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return q, domain.NewValidationError("offset", "must be a non-negative integer")
		}
		q.Offset = offset
	}
	return q, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(muxVar(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("id", "invalid id")
	}
	return id, nil
}

// GET /api/notifications
func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_notifications")

	q, err := parseListQuery(r)
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to get notifications")
		return
	}

	page, err := s.notifications.List(r.Context(), userID(r), q)
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to get notifications")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GET /api/notifications/unread-count
func (s *HTTPServer) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("unread_count")

	count, err := s.notifications.UnreadCount(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to get unread count")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// PATCH /api/notifications/{id}/read
func (s *HTTPServer) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("mark_read")

	id, err := pathID(r)
	if err == nil {
		err = s.notifications.MarkRead(r.Context(), id, userID(r))
	}
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to mark notification as read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read."})
}

// PATCH /api/notifications/read-all
func (s *HTTPServer) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("mark_all_read")

	n, err := s.notifications.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to mark notifications as read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "All notifications marked as read.", "updated": n})
}

// DELETE /api/notifications/{id}
func (s *HTTPServer) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_notification")

	id, err := pathID(r)
	if err == nil {
		err = s.notifications.Delete(r.Context(), id, userID(r))
	}
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to delete notification")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification deleted."})
}

// DELETE /api/notifications
func (s *HTTPServer) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("clear_notifications")

	n, err := s.notifications.Clear(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to clear notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "All notifications cleared.", "deleted": n})
}

// GET /api/notifications/export
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_notifications")
	uid := userID(r)

	items, err := s.notifications.ExportRows(r.Context(), uid)
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to export notifications")
		return
	}

	loc := time.UTC
	if prefs, err := s.prefs.Get(r.Context(), uid); err == nil {
		if l, err := time.LoadLocation(prefs.Timezone); err == nil {
			loc = l
		}
	}

	var buf bytes.Buffer
	if err := export.WriteNotifications(&buf, items, loc); err != nil {
		writeServiceError(w, &s.logger, err, "failed to export notifications")
		return
	}

	filename := fmt.Sprintf("notifications-%s.xlsx", time.Now().In(loc).Format("20060102"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// CreateNotificationRequest is the body of POST /api/internal/notifications.
type CreateNotificationRequest struct {
	UserID     int64  `json:"userId"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	EventID    *int64 `json:"eventId,omitempty"`
	TaskID     *int64 `json:"taskId,omitempty"`
	ReminderID *int64 `json:"reminderId,omitempty"`
}

// POST /api/internal/notifications
func (s *HTTPServer) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_notification")

	var req CreateNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, &s.logger, err, "failed to create notification")
		return
	}

	n, err := s.notifications.Create(r.Context(), req.UserID, models.NewNotification{
		Title:      req.Title,
		Message:    req.Message,
		Type:       req.Type,
		EventID:    req.EventID,
		TaskID:     req.TaskID,
		ReminderID: req.ReminderID,
	})
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to create notification")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"notification": n})
}

// POST /api/internal/reminders/process
func (s *HTTPServer) handleProcessReminders(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("process_reminders")

	res, err := s.reminders.Process(r.Context())
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to process reminders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   fmt.Sprintf("Processed %d reminders.", res.Processed),
		"processed": res.Processed,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
	})
}
