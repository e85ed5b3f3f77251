package state

import "github.com/starford/coursevault/internal/models"

// Store defines the state operations used by the sync engine and the
// service layer. Consumers should depend on this interface rather than the
// concrete *DB type.
type Store interface {
	Get(key models.ItemKey) (*models.SyncRecord, error)
	Put(rec models.SyncRecord) error
	SetPending(key models.ItemKey, hash string) error
	AllPaths() (map[string]models.ItemKey, error)
	ListRecords(courseID string) ([]models.SyncRecord, error)

	SelectedCourses() ([]models.SelectedCourse, error)
	SetSelectedCourses(courses []models.Course) error

	SaveRunSummary(s *models.RunSummary) error
	LastRunSummary() (*models.RunSummary, error)

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
