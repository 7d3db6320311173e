package export

import (
	"bytes"
	"testing"
	"time"

	"calnotify/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteNotifications(t *testing.T) {
	created := time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC)
	readAt := created.Add(time.Hour)
	items := []models.Notification{
		{ID: 2, Title: "Reminder: Dentist", Message: "soon", Type: "reminder", CreatedAt: created, Read: true, ReadAt: &readAt, Event: &models.LinkedRef{ID: 4, Title: "Dentist"}},
		{ID: 1, Title: "Hi", Message: "there", Type: "info", CreatedAt: created.Add(-time.Hour), Task: &models.LinkedRef{ID: 9, Title: "Report"}},
	}

	var buf bytes.Buffer
	cet := time.FixedZone("CET", 3600)
	require.NoError(t, WriteNotifications(&buf, items, cet))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, columns, rows[0])

	assert.Equal(t, "2", rows[1][0])
	assert.Equal(t, "2026-02-03 11:30", rows[1][1])
	assert.Equal(t, "Reminder: Dentist", rows[1][3])
	assert.Equal(t, "TRUE", rows[1][5])
	assert.Equal(t, "2026-02-03 12:30", rows[1][6])
	assert.Equal(t, "Dentist", rows[1][7])

	assert.Equal(t, "Report", rows[2][8])
}

func TestWriteNotifications_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNotifications(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
