package state

import (
	"fmt"
	"time"

	"github.com/starford/coursevault/internal/models"
)

// SelectedCourses returns the courses chosen for syncing, ordered by name.
func (db *DB) SelectedCourses() ([]models.SelectedCourse, error) {
	rows, err := db.conn.Query(`SELECT course_id, course_name, course_code, selected_at FROM selected_courses ORDER BY course_name`)
	if err != nil {
		return nil, fmt.Errorf("state: selected courses: %w", err)
	}
	defer rows.Close()

	var out []models.SelectedCourse
	for rows.Next() {
		var (
			c  models.SelectedCourse
			at string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &at); err != nil {
			return nil, err
		}
		if c.SelectedAt, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("state: selected_at: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetSelectedCourses replaces the whole selection.
func (db *DB) SetSelectedCourses(courses []models.Course) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("state: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM selected_courses`); err != nil {
		return fmt.Errorf("state: clear selection: %w", err)
	}
	now := formatTime(time.Now())
	stmt, err := tx.Prepare(`INSERT INTO selected_courses (course_id, course_name, course_code, selected_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("state: prepare selection insert: %w", err)
	}
	defer stmt.Close()
	for _, c := range courses {
		if _, err := stmt.Exec(c.ID, c.Name, c.Code, now); err != nil {
			return fmt.Errorf("state: insert course %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}
