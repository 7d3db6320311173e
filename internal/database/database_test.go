package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"calnotify/internal/config"
	"calnotify/internal/domain"
	"calnotify/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func TestNotifications_IsolationBetweenUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	own, err := db.CreateNotification(ctx, 1, models.NewNotification{Title: "A", Message: "a"})
	require.NoError(t, err)
	other, err := db.CreateNotification(ctx, 2, models.NewNotification{Title: "B", Message: "b"})
	require.NoError(t, err)

	list, err := db.ListNotifications(ctx, 1, false, 50, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, own.ID, list[0].ID)

	assert.ErrorIs(t, db.MarkNotificationRead(ctx, other.ID, 1), domain.ErrNotFound)
	assert.ErrorIs(t, db.DeleteNotification(ctx, other.ID, 1), domain.ErrNotFound)

	cleared, err := db.ClearNotifications(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	unread, err := db.CountUnreadNotifications(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestNotifications_ListEnrichmentAndOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	eventID, err := db.CreateEvent(ctx, 1, "Standup", time.Now().Add(time.Hour))
	require.NoError(t, err)
	taskID, err := db.CreateTask(ctx, 1, "Write report")
	require.NoError(t, err)

	_, err = db.CreateNotification(ctx, 1, models.NewNotification{Title: "first", Message: "m", EventID: &eventID})
	require.NoError(t, err)
	second, err := db.CreateNotification(ctx, 1, models.NewNotification{Title: "second", Message: "m", TaskID: &taskID, Type: models.NotificationTypeWarning})
	require.NoError(t, err)

	list, err := db.ListNotifications(ctx, 1, false, 50, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, second.ID, list[0].ID, "newest first")
	require.NotNil(t, list[0].Task)
	assert.Equal(t, "Write report", list[0].Task.Title)
	assert.Nil(t, list[0].Event)
	assert.Equal(t, models.NotificationTypeWarning, list[0].Type)

	require.NotNil(t, list[1].Event)
	assert.Equal(t, "Standup", list[1].Event.Title)
	assert.Equal(t, models.NotificationTypeInfo, list[1].Type)

	page, err := db.ListNotifications(ctx, 1, false, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].Title)
}

func TestNotifications_MarkRead(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n1, err := db.CreateNotification(ctx, 1, models.NewNotification{Title: "1", Message: "m"})
	require.NoError(t, err)
	_, err = db.CreateNotification(ctx, 1, models.NewNotification{Title: "2", Message: "m"})
	require.NoError(t, err)
	_, err = db.CreateNotification(ctx, 1, models.NewNotification{Title: "3", Message: "m"})
	require.NoError(t, err)

	require.NoError(t, db.MarkNotificationRead(ctx, n1.ID, 1))

	list, err := db.ListNotifications(ctx, 1, false, 50, 0)
	require.NoError(t, err)
	var firstReadAt *time.Time
	for _, n := range list {
		if n.ID == n1.ID {
			assert.True(t, n.Read)
			require.NotNil(t, n.ReadAt)
			firstReadAt = n.ReadAt
		}
	}

	// Marking again keeps the original read time.
	require.NoError(t, db.MarkNotificationRead(ctx, n1.ID, 1))
	list, err = db.ListNotifications(ctx, 1, false, 50, 0)
	require.NoError(t, err)
	for _, n := range list {
		if n.ID == n1.ID {
			require.NotNil(t, n.ReadAt)
			assert.True(t, firstReadAt.Equal(*n.ReadAt))
		}
	}

	unreadOnly, err := db.ListNotifications(ctx, 1, true, 50, 0)
	require.NoError(t, err)
	assert.Len(t, unreadOnly, 2)

	updated, err := db.MarkAllNotificationsRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	count, err := db.CountUnreadNotifications(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.ErrorIs(t, db.MarkNotificationRead(ctx, 9999, 1), domain.ErrNotFound)
}

func TestPreferences_DefaultsAndConcurrentCreate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.GetOrCreatePreferences(ctx, 42)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM user_preferences WHERE user_id = 42").Scan(&rows))
	assert.Equal(t, 1, rows)

	p, err := db.GetOrCreatePreferences(ctx, 42)
	require.NoError(t, err)
	assert.True(t, p.NotificationsEnabled)
	assert.Equal(t, models.DefaultSoundID, p.NotificationSound)
	assert.Equal(t, models.DefaultVolume, p.NotificationVolume)
	assert.False(t, p.QuietHoursEnabled)
	assert.Equal(t, "22:00", p.QuietHoursStart)
	assert.Equal(t, "08:00", p.QuietHoursEnd)
	assert.True(t, p.EmailNotifications)
	assert.True(t, p.BrowserNotifications)
	assert.Equal(t, "UTC", p.Timezone)
}

func TestPreferences_PartialUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// No row yet: defaults overlaid with the supplied fields.
	p, err := db.UpsertPreferences(ctx, 7, models.PreferencesUpdate{NotificationVolume: ptr(30)})
	require.NoError(t, err)
	assert.Equal(t, 30, p.NotificationVolume)
	assert.Equal(t, models.DefaultSoundID, p.NotificationSound)

	p, err = db.UpsertPreferences(ctx, 7, models.PreferencesUpdate{
		NotificationSound: ptr("chime"),
		QuietHoursEnabled: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, 30, p.NotificationVolume, "untouched field kept")
	assert.Equal(t, "chime", p.NotificationSound)
	assert.True(t, p.QuietHoursEnabled)
}

func TestCustomSounds_Quota(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < models.MaxCustomSoundsPerUser; i++ {
		s := &models.CustomSound{UserID: 1, Name: "s", Filename: filepathName(i), OriginalFilename: "s.mp3", Size: 100}
		require.NoError(t, db.CreateCustomSound(ctx, s))
		assert.NotZero(t, s.ID)
	}

	extra := &models.CustomSound{UserID: 1, Name: "extra", Filename: "extra.mp3", OriginalFilename: "x.mp3", Size: 1}
	assert.ErrorIs(t, db.CreateCustomSound(ctx, extra), domain.ErrQuotaExceeded)

	count, err := db.CountCustomSounds(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.MaxCustomSoundsPerUser, count)

	// Another user is unaffected.
	require.NoError(t, db.CreateCustomSound(ctx, &models.CustomSound{UserID: 2, Name: "o", Filename: "other.mp3", OriginalFilename: "o.mp3", Size: 1}))
}

func filepathName(i int) string {
	return "sound-" + string(rune('a'+i)) + ".mp3"
}

func TestCustomSounds_DeleteResetsPreference(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	used := &models.CustomSound{UserID: 1, Name: "used", Filename: "used.mp3", OriginalFilename: "u.mp3", Size: 10}
	require.NoError(t, db.CreateCustomSound(ctx, used))
	unused := &models.CustomSound{UserID: 1, Name: "unused", Filename: "unused.mp3", OriginalFilename: "n.mp3", Size: 10}
	require.NoError(t, db.CreateCustomSound(ctx, unused))

	_, err := db.UpsertPreferences(ctx, 1, models.PreferencesUpdate{NotificationSound: ptr(used.SoundID())})
	require.NoError(t, err)

	deleted, reset, err := db.DeleteCustomSound(ctx, unused.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "unused.mp3", deleted.Filename)
	assert.Zero(t, reset)

	p, err := db.GetOrCreatePreferences(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, used.SoundID(), p.NotificationSound)

	_, reset, err = db.DeleteCustomSound(ctx, used.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	p, err = db.GetOrCreatePreferences(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSoundID, p.NotificationSound)

	_, _, err = db.DeleteCustomSound(ctx, used.ID, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCustomSounds_OwnerScoped(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	s := &models.CustomSound{UserID: 1, Name: "mine", Filename: "mine.mp3", OriginalFilename: "m.mp3", Size: 10}
	require.NoError(t, db.CreateCustomSound(ctx, s))

	_, err := db.GetCustomSound(ctx, s.ID, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = db.DeleteCustomSound(ctx, s.ID, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := db.ListCustomSounds(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReminders_WindowAndDelivery(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	soon, err := db.CreateEvent(ctx, 1, "Dentist", now.Add(10*time.Minute))
	require.NoError(t, err)
	later, err := db.CreateEvent(ctx, 1, "Lunch", now.Add(2*time.Hour))
	require.NoError(t, err)
	past, err := db.CreateEvent(ctx, 1, "Gone", now.Add(-time.Minute))
	require.NoError(t, err)

	dueID, err := db.CreateReminder(ctx, soon, models.ReminderChannelInApp, 15, "")
	require.NoError(t, err)
	_, err = db.CreateReminder(ctx, soon, "email", 15, "")
	require.NoError(t, err)
	_, err = db.CreateReminder(ctx, later, models.ReminderChannelInApp, 15, "")
	require.NoError(t, err)
	_, err = db.CreateReminder(ctx, past, models.ReminderChannelInApp, 15, "")
	require.NoError(t, err)
	inactive, err := db.CreateReminder(ctx, soon, models.ReminderChannelInApp, 30, "")
	require.NoError(t, err)
	require.NoError(t, db.SetReminderActive(ctx, inactive, false))

	due, err := db.FindDueReminders(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, dueID, due[0].ID)
	assert.Equal(t, int64(1), due[0].UserID)
	assert.Equal(t, "Dentist", due[0].EventTitle)

	n, err := db.DeliverReminder(ctx, &due[0], now)
	require.NoError(t, err)
	assert.Equal(t, "Reminder: Dentist", n.Title)
	assert.Equal(t, `Your event "Dentist" is coming up in 15 minutes.`, n.Message)
	assert.Equal(t, models.NotificationTypeReminder, n.Type)
	require.NotNil(t, n.ReminderID)
	assert.Equal(t, dueID, *n.ReminderID)

	_, err = db.DeliverReminder(ctx, &due[0], now)
	assert.ErrorIs(t, err, domain.ErrReminderAlreadySent)

	due, err = db.FindDueReminders(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	list, err := db.ListNotifications(ctx, 1, false, 50, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Event)
	assert.Equal(t, soon, list[0].Event.ID)
}

func TestReminders_WindowBoundaries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	// Window start is inclusive.
	atStart, err := db.CreateEvent(ctx, 1, "edge", now.Add(15*time.Minute))
	require.NoError(t, err)
	_, err = db.CreateReminder(ctx, atStart, models.ReminderChannelInApp, 15, "")
	require.NoError(t, err)

	// Event start is exclusive.
	atEvent, err := db.CreateEvent(ctx, 1, "now", now)
	require.NoError(t, err)
	_, err = db.CreateReminder(ctx, atEvent, models.ReminderChannelInApp, 15, "")
	require.NoError(t, err)

	due, err := db.FindDueReminders(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, atStart, due[0].EventID)
}

func TestBackupService_PerformAndCleanup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	logger := zerolog.Nop()

	_, err := db.CreateNotification(ctx, 1, models.NewNotification{Title: "kept", Message: "m"})
	require.NoError(t, err)

	dir := t.TempDir()
	svc := NewBackupService(db, config.BackupConfig{
		Enabled:       true,
		IntervalHours: 24,
		StoragePath:   dir,
		RetentionDays: 7,
	}, &logger)

	path, err := svc.PerformBackup(ctx)
	require.NoError(t, err)

	restored, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer restored.Close()
	list, err := restored.ListNotifications(ctx, 1, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "kept", list[0].Title)

	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(path, old, old))
	assert.Equal(t, 1, svc.CleanupOldBackups())
}

func TestBackupService_StartPrunesImmediately(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	dir := t.TempDir()

	stale := filepath.Join(dir, backupPrefix+"20200101_000000.000.db")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))

	foreign := filepath.Join(dir, "keep-me.db")
	require.NoError(t, os.WriteFile(foreign, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(foreign, old, old))

	svc := NewBackupService(db, config.BackupConfig{
		Enabled:       true,
		IntervalHours: 24,
		StoragePath:   dir,
		RetentionDays: 7,
	}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	assert.Eventually(t, func() bool {
		_, err := os.Stat(stale)
		return os.IsNotExist(err)
	}, 5*time.Second, 20*time.Millisecond, "stale snapshot pruned without waiting for a tick")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var fresh int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), backupPrefix) {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.FileExists(t, foreign)
}
