package service

import (
	"context"
	"testing"

	"calnotify/internal/domain"
	"calnotify/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestPreferenceService_Defaults(t *testing.T) {
	f := newFixture(t)

	p, err := f.prefs.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSoundID, p.NotificationSound)
	assert.Equal(t, models.DefaultVolume, p.NotificationVolume)
	assert.Equal(t, models.DefaultTimezone, p.Timezone)
}

func TestPreferenceService_Volume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, v := range []int{-1, 101} {
		_, err := f.prefs.Update(ctx, 1, models.PreferencesUpdate{NotificationVolume: intPtr(v)})
		assert.True(t, domain.IsValidation(err), "volume %d", v)
	}

	for _, v := range []int{0, 100} {
		p, err := f.prefs.Update(ctx, 1, models.PreferencesUpdate{NotificationVolume: intPtr(v)})
		require.NoError(t, err, "volume %d", v)
		assert.Equal(t, v, p.NotificationVolume)
	}
}

func TestPreferenceService_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.sounds.UploadCustom(ctx, 2, "theirs", audio("t.mp3"))
	require.NoError(t, err)

	tests := []struct {
		name string
		upd  models.PreferencesUpdate
	}{
		{"unknown sound", models.PreferencesUpdate{NotificationSound: strPtr("trumpet")}},
		{"empty sound", models.PreferencesUpdate{NotificationSound: strPtr("")}},
		{"missing custom", models.PreferencesUpdate{NotificationSound: strPtr("custom_999")}},
		{"foreign custom", models.PreferencesUpdate{NotificationSound: strPtr(other.SoundID())}},
		{"bad quiet start", models.PreferencesUpdate{QuietHoursStart: strPtr("25:00")}},
		{"bad quiet end", models.PreferencesUpdate{QuietHoursEnd: strPtr("8:00")}},
		{"bad timezone", models.PreferencesUpdate{Timezone: strPtr("Mars/Olympus")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.prefs.Update(ctx, 1, tt.upd)
			assert.True(t, domain.IsValidation(err))
		})
	}
}

func TestPreferenceService_PartialUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.prefs.Update(ctx, 1, models.PreferencesUpdate{
		NotificationSound: strPtr("none"),
		QuietHoursEnabled: boolPtr(true),
		Timezone:          strPtr("Europe/Madrid"),
	})
	require.NoError(t, err)

	p, err := f.prefs.Update(ctx, 1, models.PreferencesUpdate{QuietHoursStart: strPtr("23:30")})
	require.NoError(t, err)
	assert.Equal(t, "none", p.NotificationSound)
	assert.True(t, p.QuietHoursEnabled)
	assert.Equal(t, "23:30", p.QuietHoursStart)
	assert.Equal(t, models.DefaultQuietHoursEnd, p.QuietHoursEnd)
	assert.Equal(t, "Europe/Madrid", p.Timezone)
}
