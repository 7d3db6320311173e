package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "database:\n  path: "+filepath.Join(dir, "db", "n.db")+"\n")
	t.Setenv("UPLOAD_DIR", "")
	t.Setenv("MAX_FILE_SIZE", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "uploads", cfg.Uploads.Dir)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Uploads.MaxFileSize)
	assert.Equal(t, "/uploads", cfg.Uploads.PublicPrefix)
	assert.Equal(t, time.Minute, cfg.ReminderInterval())
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout())

	perSecond, burst := cfg.UploadRate()
	assert.InDelta(t, 0.5, perSecond, 0.0001)
	assert.Equal(t, 5, burst)

	_, err = os.Stat(filepath.Join(dir, "db"))
	assert.NoError(t, err, "database directory should be created")
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
http:
  api_key: ${NOTIFY_TEST_KEY}
database:
  path: `+filepath.Join(dir, "n.db")+`
uploads:
  dir: from-yaml
  max_file_size: 1024
reminders:
  enabled: true
  check_interval_seconds: 15
`)
	t.Setenv("NOTIFY_TEST_KEY", "secret")
	t.Setenv("UPLOAD_DIR", "/srv/uploads")
	t.Setenv("MAX_FILE_SIZE", "2048")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.HTTP.APIKey)
	assert.Equal(t, "/srv/uploads", cfg.Uploads.Dir)
	assert.Equal(t, int64(2048), cfg.Uploads.MaxFileSize)
	assert.True(t, cfg.Reminders.Enabled)
	assert.Equal(t, 15*time.Second, cfg.ReminderInterval())
}

func TestLoad_InvalidMaxFileSize(t *testing.T) {
	path := writeConfig(t, "database:\n  path: "+filepath.Join(t.TempDir(), "n.db")+"\n")
	t.Setenv("MAX_FILE_SIZE", "ten-megabytes")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
