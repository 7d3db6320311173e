package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calnotify/internal/domain"
	"calnotify/internal/models"
)

// ListCustomSounds returns the user's uploaded sounds, newest first.
func (db *DB) ListCustomSounds(ctx context.Context, userID int64) ([]models.CustomSound, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, name, filename, original_filename, size, created_at
		FROM custom_sounds
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list custom sounds: %w", err)
	}
	defer rows.Close()

	var sounds []models.CustomSound
	for rows.Next() {
		var s models.CustomSound
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.Filename, &s.OriginalFilename, &s.Size, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan custom sound: %w", err)
		}
		sounds = append(sounds, s)
	}
	return sounds, rows.Err()
}

// GetCustomSound returns one sound owned by userID.
func (db *DB) GetCustomSound(ctx context.Context, id, userID int64) (*models.CustomSound, error) {
	return getCustomSound(ctx, db.DB, id, userID)
}

// CountCustomSounds returns how many sounds the user owns.
func (db *DB) CountCustomSounds(ctx context.Context, userID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM custom_sounds WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count custom sounds: %w", err)
	}
	return count, nil
}

// CreateCustomSound registers an uploaded sound. The quota check and the
// insert are one statement; ErrQuotaExceeded is returned when the user
// already owns the maximum number of sounds.
func (db *DB) CreateCustomSound(ctx context.Context, s *models.CustomSound) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO custom_sounds (user_id, name, filename, original_filename, size, created_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE (SELECT COUNT(*) FROM custom_sounds WHERE user_id = ?) < ?`,
		s.UserID, s.Name, s.Filename, s.OriginalFilename, s.Size, now,
		s.UserID, models.MaxCustomSoundsPerUser)
	if err != nil {
		return fmt.Errorf("insert custom sound: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrQuotaExceeded
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert custom sound id: %w", err)
	}
	s.ID = id
	s.CreatedAt = now
	return nil
}

// DeleteCustomSound removes the sound row and, in the same transaction, points
// any preference that referenced it back at the default sound. It returns the
// deleted row so the caller can remove the backing file, and the number of
// preference rows that were reset.
func (db *DB) DeleteCustomSound(ctx context.Context, id, userID int64) (*models.CustomSound, int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin delete custom sound: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sound, err := getCustomSound(ctx, tx, id, userID)
	if err != nil {
		return nil, 0, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM custom_sounds WHERE id = ? AND user_id = ?", id, userID); err != nil {
		return nil, 0, fmt.Errorf("delete custom sound: %w", err)
	}

	reset, err := resetSoundPreference(ctx, tx, userID, sound.SoundID())
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit delete custom sound: %w", err)
	}
	return sound, reset, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getCustomSound(ctx context.Context, q rowQuerier, id, userID int64) (*models.CustomSound, error) {
	var s models.CustomSound
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, name, filename, original_filename, size, created_at
		FROM custom_sounds
		WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&s.ID, &s.UserID, &s.Name, &s.Filename, &s.OriginalFilename, &s.Size, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get custom sound: %w", err)
	}
	return &s, nil
}
