// Package settings persists administrator-tunable key-value settings.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// KeyBackupRetention caps how many snapshots the backup listing exposes.
	KeyBackupRetention = "backup_retention_count"
	// KeyLogMaxSizeMB is the size at which the error log rotates.
	KeyLogMaxSizeMB = "log_max_size_mb"
	// KeyLogBackupCount is how many rotated log files are kept.
	KeyLogBackupCount = "log_backup_count"

	// DefaultBackupRetention applies when the retention setting is unset or invalid.
	DefaultBackupRetention = 7
)

// ErrStoreNotInitialised indicates a nil store or database.
var ErrStoreNotInitialised = errors.New("settings: store not initialised")

// Store reads and writes the settings table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore constructs the store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get returns the raw value and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrStoreNotInitialised
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts a value. An empty description keeps the stored one.
func (s *Store) Set(ctx context.Context, key, value, description string) error {
	if s == nil || s.db == nil {
		return ErrStoreNotInitialised
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("settings: key required")
	}
	now := s.now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			description = CASE WHEN excluded.description = '' THEN settings.description ELSE excluded.description END,
			updated_at = excluded.updated_at`,
		key, value, description, now, now)
	return err
}

// PositiveInt returns the setting as a positive integer, falling back to def
// when it is missing, malformed or not positive. Database errors are
// returned alongside def.
func (s *Store) PositiveInt(ctx context.Context, key string, def int) (int, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return def, nil
	}
	return v, nil
}

// BackupRetention returns the configured backup retention count.
func (s *Store) BackupRetention(ctx context.Context) (int, error) {
	return s.PositiveInt(ctx, KeyBackupRetention, DefaultBackupRetention)
}
