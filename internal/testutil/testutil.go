// Package testutil provides shared test helpers for setting up vaults,
// state databases and source items.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/state"
	"github.com/starford/coursevault/internal/storage"
)

// CourseID and CourseName label the fixture course.
const (
	CourseID   = "123"
	CourseName = "CS 101"
)

// TestDB opens a state database under the vault's .canvas_sync directory
// and closes it when the test ends.
func TestDB(t *testing.T, vaultDir string) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(vaultDir, ".canvas_sync", "sync.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a file-system provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	fsys, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, fsys
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Clock returns a fixed time source.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Assignment builds an assignment in the fixture course.
func Assignment(id, name string, modified time.Time) models.SourceItem {
	points := 10.0
	return models.SourceItem{
		ID:               id,
		Kind:             models.KindAssignment,
		CourseID:         CourseID,
		CourseName:       CourseName,
		SourceModifiedAt: modified,
		URL:              "https://canvas.example.edu/courses/" + CourseID + "/assignments/" + id,
		Description:      "<p>" + name + " instructions</p>",
		Assignment: &models.AssignmentFields{
			Name:           name,
			PointsPossible: &points,
		},
	}
}

// Event builds a calendar event in the fixture course.
func Event(id, title string, start time.Time) models.SourceItem {
	return models.SourceItem{
		ID:               id,
		Kind:             models.KindEvent,
		CourseID:         CourseID,
		CourseName:       CourseName,
		SourceModifiedAt: start.Add(-24 * time.Hour),
		URL:              "https://canvas.example.edu/calendar?event_id=" + id,
		Event: &models.EventFields{
			Title:   title,
			StartAt: &start,
		},
	}
}
