package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/models"
)

const recordColumns = `kind, item_id, course_id, file_path, content_hash, pending_hash, source_modified_at, synced_at`

// Get returns the record for key, or apperr.ErrNotFound.
func (db *DB) Get(key models.ItemKey) (*models.SyncRecord, error) {
	row := db.conn.QueryRow(`SELECT `+recordColumns+` FROM sync_state WHERE kind = ? AND item_id = ?`,
		string(key.Kind), key.ID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("state: get %s: %w", key, err)
	}
	return rec, nil
}

// Put inserts or replaces the record for rec.Key(). A file_path already
// owned by another item is rejected with apperr.ErrConflict.
func (db *DB) Put(rec models.SyncRecord) error {
	_, err := db.conn.Exec(`
		INSERT INTO sync_state (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, item_id) DO UPDATE SET
			course_id          = excluded.course_id,
			file_path          = excluded.file_path,
			content_hash       = excluded.content_hash,
			pending_hash       = excluded.pending_hash,
			source_modified_at = excluded.source_modified_at,
			synced_at          = excluded.synced_at
	`, string(rec.Kind), rec.ItemID, rec.CourseID, rec.FilePath, rec.ContentHash, rec.PendingHash,
		formatTime(rec.SourceModifiedAt), formatTime(rec.SyncedAt))
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("state: put %s: path %q: %w", rec.Key(), rec.FilePath, apperr.ErrConflict)
		}
		return fmt.Errorf("state: put %s: %w", rec.Key(), err)
	}
	return nil
}

// SetPending records (or clears, with an empty hash) a write intent for an
// existing record.
func (db *DB) SetPending(key models.ItemKey, hash string) error {
	res, err := db.conn.Exec(`UPDATE sync_state SET pending_hash = ? WHERE kind = ? AND item_id = ?`,
		hash, string(key.Kind), key.ID)
	if err != nil {
		return fmt.Errorf("state: set pending %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("state: set pending %s: %w", key, apperr.ErrNotFound)
	}
	return nil
}

// AllPaths returns every recorded path with the item that owns it.
func (db *DB) AllPaths() (map[string]models.ItemKey, error) {
	rows, err := db.conn.Query(`SELECT file_path, kind, item_id FROM sync_state`)
	if err != nil {
		return nil, fmt.Errorf("state: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]models.ItemKey)
	for rows.Next() {
		var p, kind, id string
		if err := rows.Scan(&p, &kind, &id); err != nil {
			return nil, err
		}
		out[p] = models.ItemKey{Kind: models.Kind(kind), ID: id}
	}
	return out, rows.Err()
}

// ListRecords returns records ordered by path, optionally limited to one course.
func (db *DB) ListRecords(courseID string) ([]models.SyncRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM sync_state`
	var args []any
	if courseID != "" {
		q += ` WHERE course_id = ?`
		args = append(args, courseID)
	}
	q += ` ORDER BY file_path`

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("state: list records: %w", err)
	}
	defer rows.Close()

	var out []models.SyncRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.SyncRecord, error) {
	var (
		rec              models.SyncRecord
		kind             string
		modified, synced string
	)
	if err := row.Scan(&kind, &rec.ItemID, &rec.CourseID, &rec.FilePath, &rec.ContentHash,
		&rec.PendingHash, &modified, &synced); err != nil {
		return nil, err
	}
	rec.Kind = models.Kind(kind)
	var err error
	if rec.SourceModifiedAt, err = parseTime(modified); err != nil {
		return nil, fmt.Errorf("state: source_modified_at: %w", err)
	}
	if rec.SyncedAt, err = parseTime(synced); err != nil {
		return nil, fmt.Errorf("state: synced_at: %w", err)
	}
	return &rec, nil
}

// Times are stored as RFC 3339 text in UTC; the zero time is stored as an empty string.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
