// Package syncservice is the application facade shared by the HTTP API,
// the MCP server and the CLI.
package syncservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/checksum"
	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/notepath"
	"github.com/starford/coursevault/internal/parser"
	"github.com/starford/coursevault/internal/state"
	"github.com/starford/coursevault/internal/storage"
	"github.com/starford/coursevault/internal/syncer"
)

// Local states of a synced note.
const (
	NoteSynced  = "synced"
	NoteEdited  = "edited"
	NoteMissing = "missing"
)

// CourseLister lists the courses available upstream.
type CourseLister interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
}

// Runner performs sync runs.
type Runner interface {
	Run(ctx context.Context, courses []models.Course) (*models.RunSummary, error)
	Start(ctx context.Context, courses []models.Course) (<-chan *models.RunSummary, error)
	Busy() bool
}

// Verify *syncer.Syncer satisfies Runner at compile time.
var _ Runner = (*syncer.Syncer)(nil)

// Status is the current sync state.
type Status struct {
	Running      bool               `json:"running"`
	LastRun      *models.RunSummary `json:"last_run,omitempty"`
	Courses      []models.Course    `json:"courses"`
	CourseSource string             `json:"course_source"`
	Records      int                `json:"records"`
	NextRun      string             `json:"next_run,omitempty"`
}

// RecordView is a sync record with the current state of its note.
type RecordView struct {
	models.SyncRecord
	LocalState string `json:"local_state"`
}

// NoteDetail is a materialized note as read from the vault.
type NoteDetail struct {
	Path        string          `json:"path"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Checksum    string          `json:"checksum"`
	Frontmatter map[string]any  `json:"frontmatter,omitempty"`
	Tags        []string        `json:"tags"`
	Key         *models.ItemKey `json:"key,omitempty"`
	LocalState  string          `json:"local_state,omitempty"`
}

// NoteEntry is a Markdown file in the vault and the item that owns it.
type NoteEntry struct {
	storage.NoteMetadata
	Key        *models.ItemKey `json:"key,omitempty"`
	LocalState string          `json:"local_state,omitempty"`
}

// Options configures a Service.
type Options struct {
	Runner  Runner
	Store   state.Store
	Files   storage.Provider
	Courses CourseLister
	// Pinned courses from configuration override the stored selection.
	Pinned []models.Course
	// NextRun, when set, reports the next scheduled run.
	NextRun func() time.Time
	Logger  *slog.Logger
}

// Service coordinates sync runs, state and vault reads.
type Service struct {
	runner  Runner
	store   state.Store
	files   storage.Provider
	lister  CourseLister
	pinned  []models.Course
	nextRun func() time.Time
	logger  *slog.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		runner:  opts.Runner,
		store:   opts.Store,
		files:   opts.Files,
		lister:  opts.Courses,
		pinned:  opts.Pinned,
		nextRun: opts.NextRun,
		logger:  opts.Logger,
	}
}

// Courses returns the courses a run syncs: pinned ones when configured,
// otherwise the stored selection. The second value names the source.
func (s *Service) Courses(_ context.Context) ([]models.Course, string, error) {
	if len(s.pinned) > 0 {
		return s.pinned, "config", nil
	}
	selected, err := s.store.SelectedCourses()
	if err != nil {
		return nil, "", err
	}
	out := make([]models.Course, 0, len(selected))
	for _, sc := range selected {
		out = append(out, sc.Course)
	}
	return out, "selection", nil
}

// RunSync performs a run over the effective courses and waits for it.
func (s *Service) RunSync(ctx context.Context) (*models.RunSummary, error) {
	courses, _, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}
	return s.runner.Run(ctx, courses)
}

// StartSync begins a run in the background. It fails with
// apperr.ErrSyncBusy when a run is active.
func (s *Service) StartSync(ctx context.Context) (<-chan *models.RunSummary, error) {
	courses, _, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}
	return s.runner.Start(ctx, courses)
}

// Status reports whether a run is active and the last run's summary.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	courses, source, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords("")
	if err != nil {
		return nil, err
	}
	st := &Status{
		Running:      s.runner.Busy(),
		Courses:      courses,
		CourseSource: source,
		Records:      len(records),
	}
	last, err := s.store.LastRunSummary()
	switch {
	case err == nil:
		st.LastRun = last
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}
	if s.nextRun != nil {
		st.NextRun = s.nextRun().Format(time.RFC3339)
	}
	return st, nil
}

// ListRecords returns sync records, optionally for one course, each with
// the state of its note on disk.
func (s *Service) ListRecords(_ context.Context, courseID string) ([]RecordView, error) {
	records, err := s.store.ListRecords(courseID)
	if err != nil {
		return nil, err
	}
	out := make([]RecordView, 0, len(records))
	for _, r := range records {
		out = append(out, RecordView{SyncRecord: r, LocalState: s.localState(r)})
	}
	return out, nil
}

func (s *Service) localState(r models.SyncRecord) string {
	data, err := s.files.Read(r.FilePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NoteMissing
	case err != nil:
		s.logger.Warn("syncservice: read note", slog.String("path", r.FilePath), slog.String("error", err.Error()))
		return NoteMissing
	case r.Matches(checksum.Sum(data)):
		return NoteSynced
	default:
		return NoteEdited
	}
}

// ListNotes lists the Markdown files under dir (the whole vault when
// empty). Files owned by a sync record carry its key and local state.
func (s *Service) ListNotes(_ context.Context, dir string) ([]NoteEntry, error) {
	metas, err := s.files.List(dir)
	if err != nil {
		return nil, err
	}
	paths, err := s.store.AllPaths()
	if err != nil {
		return nil, err
	}
	owners := notepath.NewOwners(paths)
	out := make([]NoteEntry, 0, len(metas))
	for _, m := range metas {
		e := NoteEntry{NoteMetadata: m}
		if key, ok := owners.Owner(m.Path); ok {
			e.Key = &key
			e.LocalState = NoteEdited
			if rec, err := s.store.Get(key); err == nil && rec.Matches(m.Checksum) {
				e.LocalState = NoteSynced
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// GetNote reads and parses a Markdown note from the vault.
func (s *Service) GetNote(_ context.Context, notePath string) (*NoteDetail, error) {
	clean := path.Clean(strings.TrimPrefix(notePath, "/"))
	if !strings.HasSuffix(clean, ".md") || hiddenPath(clean) {
		return nil, fmt.Errorf("syncservice: %q is not a note path: %w", notePath, apperr.ErrNotFound)
	}
	data, err := s.files.Read(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	note := parser.Parse(data)
	detail := &NoteDetail{
		Path:        clean,
		Title:       note.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Frontmatter: note.Frontmatter,
		Tags:        nonNil(note.Tags),
		Key:         note.Key,
	}
	if note.Key != nil {
		rec, err := s.store.Get(*note.Key)
		if err == nil && rec.FilePath == clean {
			detail.LocalState = NoteEdited
			if rec.Matches(detail.Checksum) {
				detail.LocalState = NoteSynced
			}
		}
	}
	return detail, nil
}

// AvailableCourses lists the user's active courses upstream.
func (s *Service) AvailableCourses(ctx context.Context) ([]models.Course, error) {
	if s.lister == nil {
		return nil, errors.New("syncservice: no course source configured")
	}
	return s.lister.ListCourses(ctx)
}

// SelectedCourses returns the stored selection.
func (s *Service) SelectedCourses(_ context.Context) ([]models.SelectedCourse, error) {
	return s.store.SelectedCourses()
}

// SelectCourses replaces the stored selection. Names missing from the
// request are filled in from the upstream course list when reachable.
func (s *Service) SelectCourses(ctx context.Context, courses []models.Course) ([]models.SelectedCourse, error) {
	if needsNames(courses) && s.lister != nil {
		if available, err := s.lister.ListCourses(ctx); err == nil {
			byID := make(map[string]models.Course, len(available))
			for _, c := range available {
				byID[c.ID] = c
			}
			for i, c := range courses {
				if up, ok := byID[c.ID]; ok && c.Name == "" {
					courses[i].Name = up.Name
					courses[i].Code = up.Code
				}
			}
		} else {
			s.logger.Warn("syncservice: course names unavailable", slog.String("error", err.Error()))
		}
	}
	if err := s.store.SetSelectedCourses(courses); err != nil {
		return nil, err
	}
	s.logger.Info("syncservice: course selection saved", slog.Int("courses", len(courses)))
	return s.store.SelectedCourses()
}

// hiddenPath reports whether any segment is a dot entry, which also
// covers parent traversal and the state directory.
func hiddenPath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func needsNames(courses []models.Course) bool {
	for _, c := range courses {
		if c.Name == "" {
			return true
		}
	}
	return false
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
