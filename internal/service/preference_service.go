package service

import (
	"context"
	"strings"
	"time"
	_ "time/tzdata" // zone validation must not depend on the host zoneinfo

	"calnotify/internal/domain"
	"calnotify/internal/events"
	"calnotify/internal/models"
	"github.com/rs/zerolog"
)

// SoundResolver decides whether a sound id may be used by a user.
type SoundResolver interface {
	Selectable(ctx context.Context, userID int64, soundID string) (bool, error)
}

type PreferenceService struct {
	repo   domain.PreferenceRepository
	sounds SoundResolver
	bus    *events.EventBus
	logger zerolog.Logger
}

func NewPreferenceService(repo domain.PreferenceRepository, sounds SoundResolver, bus *events.EventBus, logger *zerolog.Logger) *PreferenceService {
	return &PreferenceService{
		repo:   repo,
		sounds: sounds,
		bus:    bus,
		logger: logger.With().Str("component", "preferences").Logger(),
	}
}

// Get returns the user's preferences, creating the default row on first access.
func (s *PreferenceService) Get(ctx context.Context, userID int64) (*models.UserPreferences, error) {
	return s.repo.GetOrCreatePreferences(ctx, userID)
}

// Update validates a partial update and applies it.
func (s *PreferenceService) Update(ctx context.Context, userID int64, upd models.PreferencesUpdate) (*models.UserPreferences, error) {
	if err := s.validate(ctx, userID, &upd); err != nil {
		return nil, err
	}

	prefs, err := s.repo.UpsertPreferences(ctx, userID, upd)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.NewEvent(events.PreferencesUpdated, userID, nil))
	return prefs, nil
}

func (s *PreferenceService) validate(ctx context.Context, userID int64, upd *models.PreferencesUpdate) error {
	if upd.NotificationSound != nil {
		sound := strings.TrimSpace(*upd.NotificationSound)
		if sound == "" {
			return domain.NewValidationError("notificationSound", "invalid sound")
		}
		ok, err := s.sounds.Selectable(ctx, userID, sound)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewValidationError("notificationSound", "invalid sound")
		}
		upd.NotificationSound = &sound
	}

	if upd.NotificationVolume != nil {
		if v := *upd.NotificationVolume; v < 0 || v > 100 {
			return domain.NewValidationError("notificationVolume", "must be between 0 and 100")
		}
	}

	if upd.QuietHoursStart != nil && !isClockTime(*upd.QuietHoursStart) {
		return domain.NewValidationError("quietHoursStart", "must be HH:MM")
	}
	if upd.QuietHoursEnd != nil && !isClockTime(*upd.QuietHoursEnd) {
		return domain.NewValidationError("quietHoursEnd", "must be HH:MM")
	}

	if upd.Timezone != nil {
		tz := strings.TrimSpace(*upd.Timezone)
		if tz == "" {
			return domain.NewValidationError("timezone", "is required")
		}
		if _, err := time.LoadLocation(tz); err != nil {
			return domain.NewValidationError("timezone", "unknown timezone")
		}
		upd.Timezone = &tz
	}
	return nil
}

// isClockTime accepts 24h "HH:MM".
func isClockTime(v string) bool {
	if len(v) != 5 {
		return false
	}
	_, err := time.Parse("15:04", v)
	return err == nil
}
