// Package export renders a user's notification history as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"calnotify/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheetName   = "Notifications"
	timeLayout  = "2006-01-02 15:04"
)

var columns = []string{"ID", "Created", "Type", "Title", "Message", "Read", "Read at", "Event", "Task"}

// sheetWriter appends rows to a single sheet.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
}

func newSheetWriter(name string) (*sheetWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", name); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	return &sheetWriter{file: f, sheet: name, row: 1}, nil
}

func (w *sheetWriter) writeHeader(cols []string) error {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	if err := w.writeRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(cols), 1)
		_ = w.file.SetCellStyle(w.sheet, "A1", endCell, style)
	}
	return w.file.SetPanes(w.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (w *sheetWriter) writeRow(values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

// WriteNotifications writes items to out as an XLSX workbook. Timestamps are
// rendered in loc; nil means UTC.
func WriteNotifications(out io.Writer, items []models.Notification, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	w, err := newSheetWriter(sheetName)
	if err != nil {
		return err
	}
	defer w.file.Close()

	if err := w.writeHeader(columns); err != nil {
		return err
	}

	for i := range items {
		n := &items[i]
		readAt := ""
		if n.ReadAt != nil {
			readAt = n.ReadAt.In(loc).Format(timeLayout)
		}
		event, task := "", ""
		if n.Event != nil {
			event = n.Event.Title
		}
		if n.Task != nil {
			task = n.Task.Title
		}
		row := []any{n.ID, n.CreatedAt.In(loc).Format(timeLayout), n.Type, n.Title, n.Message, n.Read, readAt, event, task}
		if err := w.writeRow(row); err != nil {
			return err
		}
	}

	_ = w.file.SetColWidth(sheetName, "D", "E", 40)
	return w.file.Write(out)
}
