package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"calnotify/internal/cache"
	"calnotify/internal/domain"
	"calnotify/internal/events"
	"calnotify/internal/metrics"
	"calnotify/internal/models"
	"github.com/rs/zerolog"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
	MaxExportRows    = 1000

	maxTitleLength   = 255
	maxMessageLength = 2000
)

// ListQuery selects one page of notifications.
type ListQuery struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// DefaultListQuery is the page returned when the caller sends no bounds.
func DefaultListQuery() ListQuery {
	return ListQuery{Limit: DefaultPageLimit}
}

// Normalize validates the bounds and clamps the limit to MaxPageLimit.
func (q ListQuery) Normalize() (ListQuery, error) {
	if q.Limit < 1 {
		return q, domain.NewValidationError("limit", "must be a positive integer")
	}
	if q.Offset < 0 {
		return q, domain.NewValidationError("offset", "must be a non-negative integer")
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	return q, nil
}

type NotificationService struct {
	repo   domain.NotificationRepository
	unread *cache.UnreadCounts
	bus    *events.EventBus
	logger zerolog.Logger
}

func NewNotificationService(repo domain.NotificationRepository, unread *cache.UnreadCounts, bus *events.EventBus, logger *zerolog.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		unread: unread,
		bus:    bus,
		logger: logger.With().Str("component", "notifications").Logger(),
	}
}

// List returns one page of the user's notifications plus the unread total.
func (s *NotificationService) List(ctx context.Context, userID int64, q ListQuery) (*models.NotificationPage, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListNotifications(ctx, userID, q.UnreadOnly, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.NotificationPage{Notifications: items, UnreadCount: count}, nil
}

// UnreadCount serves the cached count when present. A count read while the
// notifications changed is returned but not cached.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	if count, ok := s.unread.Get(ctx, userID); ok {
		return count, nil
	}
	version := s.unread.Version(ctx, userID)
	count, err := s.repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.unread.Set(ctx, userID, version, count)
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64) error {
	if err := s.repo.MarkNotificationRead(ctx, id, userID); err != nil {
		return err
	}
	s.bus.Publish(events.NewEvent(events.NotificationRead, userID, map[string]int64{"id": id}))
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.bus.Publish(events.NewEvent(events.NotificationsRead, userID, map[string]int64{"updated": n}))
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, id, userID int64) error {
	if err := s.repo.DeleteNotification(ctx, id, userID); err != nil {
		return err
	}
	s.bus.Publish(events.NewEvent(events.NotificationDeleted, userID, map[string]int64{"id": id}))
	return nil
}

func (s *NotificationService) Clear(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.ClearNotifications(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.bus.Publish(events.NewEvent(events.NotificationsCleared, userID, map[string]int64{"deleted": n}))
	return n, nil
}

// Create validates and stores a notification for userID.
func (s *NotificationService) Create(ctx context.Context, userID int64, in models.NewNotification) (*models.Notification, error) {
	if userID <= 0 {
		return nil, domain.NewValidationError("userId", "must be a positive integer")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	switch {
	case in.Title == "":
		return nil, domain.NewValidationError("title", "is required")
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		return nil, domain.NewValidationError("title", "is too long")
	case in.Message == "":
		return nil, domain.NewValidationError("message", "is required")
	case utf8.RuneCountInString(in.Message) > maxMessageLength:
		return nil, domain.NewValidationError("message", "is too long")
	}
	if in.Type == "" {
		in.Type = models.NotificationTypeInfo
	}
	if !models.IsValidNotificationType(in.Type) {
		return nil, domain.NewValidationError("type", "unknown notification type")
	}

	n, err := s.repo.CreateNotification(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	s.Created(n)
	return n, nil
}

// Created publishes a notification stored by another component.
func (s *NotificationService) Created(n *models.Notification) {
	metrics.IncNotificationCreated(n.Type)
	s.bus.Publish(events.NewEvent(events.NotificationCreated, n.UserID, map[string]any{"id": n.ID, "type": n.Type}))
}

// ExportRows returns the newest notifications of the user for export.
func (s *NotificationService) ExportRows(ctx context.Context, userID int64) ([]models.Notification, error) {
	return s.repo.ListNotifications(ctx, userID, false, MaxExportRows, 0)
}
