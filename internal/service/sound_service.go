package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"calnotify/internal/domain"
	"calnotify/internal/events"
	"calnotify/internal/models"
	"calnotify/internal/upload"
	"github.com/rs/zerolog"
)

const maxSoundNameLength = 100

var builtinSounds = [...]models.Sound{
	{ID: "default", Name: "Default", File: "default.mp3"},
	{ID: "chime", Name: "Chime", File: "chime.mp3"},
	{ID: "bell", Name: "Bell", File: "bell.mp3"},
	{ID: "ping", Name: "Ping", File: "ping.mp3"},
	{ID: "pop", Name: "Pop", File: "pop.mp3"},
	{ID: "ding", Name: "Ding", File: "ding.mp3"},
	{ID: "alert", Name: "Alert", File: "alert.mp3"},
	{ID: "gentle", Name: "Gentle", File: "gentle.mp3"},
	{ID: "none", Name: "None (Silent)"},
}

// BuiltinSounds returns a copy of the fixed sound table.
func BuiltinSounds() []models.Sound {
	out := make([]models.Sound, len(builtinSounds))
	copy(out, builtinSounds[:])
	return out
}

// IsBuiltinSound reports whether id names a built-in sound.
func IsBuiltinSound(id string) bool {
	for _, s := range builtinSounds {
		if s.ID == id {
			return true
		}
	}
	return false
}

type SoundService struct {
	repo    domain.SoundRepository
	gateway *upload.Gateway
	bus     *events.EventBus
	logger  zerolog.Logger
}

func NewSoundService(repo domain.SoundRepository, gateway *upload.Gateway, bus *events.EventBus, logger *zerolog.Logger) *SoundService {
	return &SoundService{
		repo:    repo,
		gateway: gateway,
		bus:     bus,
		logger:  logger.With().Str("component", "sounds").Logger(),
	}
}

// ListAvailable returns the built-in sounds followed by the user's custom
// sounds, newest first.
func (s *SoundService) ListAvailable(ctx context.Context, userID int64) ([]models.Sound, error) {
	custom, err := s.repo.ListCustomSounds(ctx, userID)
	if err != nil {
		return nil, err
	}

	sounds := BuiltinSounds()
	for i := range custom {
		sounds = append(sounds, s.View(&custom[i]))
	}
	return sounds, nil
}

// View exposes a custom sound as a selectable catalog entry.
func (s *SoundService) View(c *models.CustomSound) models.Sound {
	return models.Sound{
		ID:     c.SoundID(),
		Name:   c.Name,
		File:   c.Filename,
		URL:    s.gateway.URL(upload.DirSounds, c.Filename),
		Custom: true,
	}
}

// Selectable reports whether soundID may be stored in the user's preferences.
func (s *SoundService) Selectable(ctx context.Context, userID int64, soundID string) (bool, error) {
	if IsBuiltinSound(soundID) {
		return true, nil
	}
	id, ok := models.ParseCustomSoundID(soundID)
	if !ok {
		return false, nil
	}
	_, err := s.repo.GetCustomSound(ctx, id, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UploadCustom stores an audio file and registers it as a custom sound. The
// stored file is removed on every failure after the write.
func (s *SoundService) UploadCustom(ctx context.Context, userID int64, name string, src upload.Source) (sound *models.CustomSound, err error) {
	name, err = soundName(name, src.Filename)
	if err != nil {
		return nil, err
	}

	if err = upload.Validate(upload.AudioRules(), src); err != nil {
		return nil, err
	}

	count, err := s.repo.CountCustomSounds(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count >= models.MaxCustomSoundsPerUser {
		return nil, domain.ErrQuotaExceeded
	}

	stored, err := s.gateway.Store(ctx, upload.AudioRules(), src)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			s.gateway.Discard(stored)
		}
	}()

	sound = &models.CustomSound{
		UserID:           userID,
		Name:             name,
		Filename:         stored.Filename,
		OriginalFilename: stored.OriginalFilename,
		Size:             stored.Size,
	}
	// The store re-checks the quota atomically; a concurrent upload can still lose here.
	if err = s.repo.CreateCustomSound(ctx, sound); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", userID).Str("sound_id", sound.SoundID()).Msg("Custom sound uploaded")
	s.bus.Publish(events.NewEvent(events.SoundUploaded, userID, map[string]any{"soundId": sound.SoundID()}))
	return sound, nil
}

// DeleteCustom removes a custom sound, resets preferences that used it and
// deletes the backing file. A file that is already gone is ignored.
func (s *SoundService) DeleteCustom(ctx context.Context, userID, id int64) error {
	sound, reset, err := s.repo.DeleteCustomSound(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.gateway.Remove(upload.DirSounds, sound.Filename); err != nil {
		s.logger.Error().Err(err).
			Int64("user_id", userID).
			Str("sound_id", sound.SoundID()).
			Msg("Failed to remove custom sound file")
	}

	s.logger.Info().Int64("user_id", userID).Str("sound_id", sound.SoundID()).Int64("preferences_reset", reset).Msg("Custom sound deleted")
	s.bus.Publish(events.NewEvent(events.SoundDeleted, userID, map[string]any{"soundId": sound.SoundID(), "preferencesReset": reset}))
	return nil
}

// ParseSoundRef accepts either "custom_<id>" or a bare numeric id.
func ParseSoundRef(ref string) (int64, error) {
	if id, ok := models.ParseCustomSoundID(ref); ok {
		return id, nil
	}
	if id, ok := models.ParseCustomSoundID(models.CustomSoundPrefix + ref); ok {
		return id, nil
	}
	return 0, domain.NewValidationError("id", "invalid sound id")
}

func soundName(name, original string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(strings.TrimSuffix(filepath.Base(original), filepath.Ext(original)))
	}
	if name == "" || name == "." {
		name = "Custom sound"
	}
	if utf8.RuneCountInString(name) > maxSoundNameLength {
		return "", domain.NewValidationError("name", "is too long")
	}
	return name, nil
}
