package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/models"
)

const (
	keyLastSyncAt     = "last_sync_at"
	keyLastSyncStatus = "last_sync_status"
)

// Setting returns a stored value, or apperr.ErrNotFound.
func (db *DB) Setting(key string) (string, error) {
	var v string
	err := db.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("state: setting %s: %w", key, err)
	}
	return v, nil
}

// SetSetting stores a value.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("state: set %s: %w", key, err)
	}
	return nil
}

// SaveRunSummary stores s as the last run status.
func (db *DB) SaveRunSummary(s *models.RunSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("state: encode summary: %w", err)
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("state: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	upsert := `INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.Exec(upsert, keyLastSyncAt, formatTime(s.CompletedAt)); err != nil {
		return fmt.Errorf("state: save last sync time: %w", err)
	}
	if _, err := tx.Exec(upsert, keyLastSyncStatus, string(data)); err != nil {
		return fmt.Errorf("state: save last sync status: %w", err)
	}
	return tx.Commit()
}

// LastRunSummary returns the most recently saved summary, or apperr.ErrNotFound.
func (db *DB) LastRunSummary() (*models.RunSummary, error) {
	raw, err := db.Setting(keyLastSyncStatus)
	if err != nil {
		return nil, err
	}
	var s models.RunSummary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("state: decode summary: %w", err)
	}
	return &s, nil
}
