package models

import (
	"strconv"
	"strings"
	"time"
)

// CustomSoundPrefix marks sound ids that refer to a user-uploaded sound.
const CustomSoundPrefix = "custom_"

// MaxCustomSoundsPerUser is the per-user upload quota.
const MaxCustomSoundsPerUser = 10

// Sound is an entry in the list of selectable notification sounds.
type Sound struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	File   string `json:"file,omitempty"`
	URL    string `json:"url,omitempty"`
	Custom bool   `json:"custom"`
}

// CustomSound is an audio file uploaded by a user.
type CustomSound struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"-"`
	Name             string    `json:"name"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"originalFilename"`
	Size             int64     `json:"size"`
	CreatedAt        time.Time `json:"createdAt"`
}

// SoundID returns the preference identifier for the custom sound.
func (s *CustomSound) SoundID() string {
	return CustomSoundID(s.ID)
}

// CustomSoundID formats the preference identifier of custom sound id.
func CustomSoundID(id int64) string {
	return CustomSoundPrefix + strconv.FormatInt(id, 10)
}

// ParseCustomSoundID extracts the row id from a "custom_<id>" identifier.
func ParseCustomSoundID(soundID string) (int64, bool) {
	if !strings.HasPrefix(soundID, CustomSoundPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(soundID, CustomSoundPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
