package syncservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/render"
	"github.com/starford/coursevault/internal/state"
	"github.com/starford/coursevault/internal/syncer"
	"github.com/starford/coursevault/internal/testutil"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type stubSource struct {
	items []models.SourceItem
}

func (s *stubSource) FetchItems(_ context.Context, _ string, kind models.Kind, _ *time.Time) ([]models.SourceItem, error) {
	var out []models.SourceItem
	for _, it := range s.items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out, nil
}

type stubLister struct {
	courses []models.Course
	err     error
}

func (l *stubLister) ListCourses(context.Context) ([]models.Course, error) {
	return l.courses, l.err
}

type fixture struct {
	svc   *Service
	db    *state.DB
	vault string
}

func setup(t *testing.T, pinned []models.Course, items ...models.SourceItem) fixture {
	t.Helper()
	dir, fsys := testutil.TestVault(t)
	db := testutil.TestDB(t, dir)
	runner := syncer.New(syncer.Options{
		Source:   &stubSource{items: items},
		Store:    db,
		Files:    fsys,
		Renderer: render.New(time.UTC),
		Logger:   testutil.Logger(),
		Now:      testutil.Clock(t0.Add(time.Hour)),
	})
	svc := New(Options{
		Runner: runner,
		Store:  db,
		Files:  fsys,
		Courses: &stubLister{courses: []models.Course{
			{ID: testutil.CourseID, Name: testutil.CourseName, Code: "CS101"},
			{ID: "456", Name: "MATH 220"},
		}},
		Pinned: pinned,
		Logger: testutil.Logger(),
	})
	return fixture{svc: svc, db: db, vault: dir}
}

var pinned = []models.Course{{ID: testutil.CourseID, Name: testutil.CourseName}}

func TestCourses_PinnedOverridesSelection(t *testing.T) {
	f := setup(t, pinned)
	if err := f.db.SetSelectedCourses([]models.Course{{ID: "456", Name: "MATH 220"}}); err != nil {
		t.Fatal(err)
	}
	courses, source, err := f.svc.Courses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if source != "config" || len(courses) != 1 || courses[0].ID != testutil.CourseID {
		t.Errorf("got %v from %q, want pinned course", courses, source)
	}
}

func TestCourses_FromSelection(t *testing.T) {
	f := setup(t, nil)
	if _, err := f.svc.SelectCourses(context.Background(), []models.Course{{ID: "456"}}); err != nil {
		t.Fatal(err)
	}
	courses, source, err := f.svc.Courses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if source != "selection" || len(courses) != 1 {
		t.Fatalf("got %v from %q", courses, source)
	}
	if courses[0].Name != "MATH 220" {
		t.Errorf("name = %q, want it filled from the course list", courses[0].Name)
	}
}

func TestRunSync_NoCourses(t *testing.T) {
	f := setup(t, nil)
	_, err := f.svc.RunSync(context.Background())
	if !errors.Is(err, apperr.ErrNoCollections) {
		t.Errorf("err = %v, want ErrNoCollections", err)
	}
}

func TestRunSyncAndStatus(t *testing.T) {
	f := setup(t, pinned, testutil.Assignment("1", "Homework 1", t0))
	ctx := context.Background()

	summary, err := f.svc.RunSync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalWritten() != 1 {
		t.Fatalf("written = %d, want 1", summary.TotalWritten())
	}

	st, err := f.svc.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Running {
		t.Error("status reports a running sync")
	}
	if st.Records != 1 {
		t.Errorf("records = %d, want 1", st.Records)
	}
	if st.LastRun == nil || st.LastRun.RunID != summary.RunID {
		t.Errorf("last run = %+v, want %s", st.LastRun, summary.RunID)
	}
}

func TestStatus_NoRunYet(t *testing.T) {
	f := setup(t, pinned)
	st, err := f.svc.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.LastRun != nil {
		t.Errorf("last run = %+v, want nil", st.LastRun)
	}
}

func TestStartSync(t *testing.T) {
	f := setup(t, pinned, testutil.Assignment("1", "Homework 1", t0))
	done, err := f.svc.StartSync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	select {
	case summary := <-done:
		if summary == nil || summary.TotalWritten() != 1 {
			t.Errorf("summary = %+v", summary)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("background run did not finish")
	}
}

func TestListRecords_LocalState(t *testing.T) {
	f := setup(t, pinned,
		testutil.Assignment("1", "Homework 1", t0),
		testutil.Assignment("2", "Homework 2", t0),
		testutil.Assignment("3", "Homework 3", t0),
	)
	ctx := context.Background()
	if _, err := f.svc.RunSync(ctx); err != nil {
		t.Fatal(err)
	}

	views, err := f.svc.ListRecords(ctx, testutil.CourseID)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 3 {
		t.Fatalf("records = %d, want 3", len(views))
	}
	paths := map[string]string{}
	for _, v := range views {
		paths[v.ItemID] = v.FilePath
	}
	if err := os.WriteFile(filepath.Join(f.vault, paths["2"]), []byte("my notes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(f.vault, paths["3"])); err != nil {
		t.Fatal(err)
	}

	views, err = f.svc.ListRecords(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"1": NoteSynced, "2": NoteEdited, "3": NoteMissing}
	for _, v := range views {
		if v.LocalState != want[v.ItemID] {
			t.Errorf("item %s: state = %q, want %q", v.ItemID, v.LocalState, want[v.ItemID])
		}
	}

	other, err := f.svc.ListRecords(ctx, "456")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("records for other course = %d, want 0", len(other))
	}
}

func TestGetNote(t *testing.T) {
	f := setup(t, pinned, testutil.Assignment("1", "Homework 1", t0))
	ctx := context.Background()
	if _, err := f.svc.RunSync(ctx); err != nil {
		t.Fatal(err)
	}
	views, err := f.svc.ListRecords(ctx, "")
	if err != nil || len(views) != 1 {
		t.Fatalf("records = %v, err = %v", views, err)
	}

	note, err := f.svc.GetNote(ctx, views[0].FilePath)
	if err != nil {
		t.Fatal(err)
	}
	if note.Title != "Homework 1" {
		t.Errorf("title = %q", note.Title)
	}
	if note.Key == nil || note.Key.ID != "1" || note.Key.Kind != models.KindAssignment {
		t.Errorf("key = %+v", note.Key)
	}
	if note.LocalState != NoteSynced {
		t.Errorf("local state = %q, want synced", note.LocalState)
	}
}

func TestGetNote_Rejected(t *testing.T) {
	f := setup(t, pinned)
	for _, p := range []string{"missing.md", "../outside.md", ".canvas_sync/sync.db", ""} {
		if _, err := f.svc.GetNote(context.Background(), p); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("GetNote(%q) err = %v, want ErrNotFound", p, err)
		}
	}
}

func TestAvailableCourses(t *testing.T) {
	f := setup(t, nil)
	courses, err := f.svc.AvailableCourses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(courses) != 2 {
		t.Errorf("courses = %d, want 2", len(courses))
	}
}

func TestSelectCourses_ListerDown(t *testing.T) {
	f := setup(t, nil)
	f.svc.lister = &stubLister{err: errors.New("offline")}
	selected, err := f.svc.SelectCourses(context.Background(), []models.Course{{ID: "789"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(selected) != 1 || selected[0].DisplayName() != "course_789" {
		t.Errorf("selected = %+v", selected)
	}
}

func TestListNotes_FlagsTrackedFiles(t *testing.T) {
	f := setup(t, pinned, testutil.Assignment("1", "Homework 1", t0))
	ctx := context.Background()
	if _, err := f.svc.RunSync(ctx); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.vault, "scratch.md"), []byte("# mine"), 0o644); err != nil {
		t.Fatal(err)
	}

	notes, err := f.svc.ListNotes(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("notes = %d, want 2 (state dir excluded)", len(notes))
	}
	for _, n := range notes {
		switch n.Path {
		case "scratch.md":
			if n.Key != nil || n.LocalState != "" {
				t.Errorf("untracked note = %+v", n)
			}
		default:
			if n.Key == nil || n.Key.ID != "1" || n.LocalState != NoteSynced {
				t.Errorf("tracked note = %+v", n)
			}
		}
	}

	scoped, err := f.svc.ListNotes(ctx, "Courses")
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 {
		t.Errorf("notes under Courses = %d, want 1", len(scoped))
	}
}
