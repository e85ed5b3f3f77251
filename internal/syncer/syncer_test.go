package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/canvas"
	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/render"
	"github.com/starford/coursevault/internal/retry"
	"github.com/starford/coursevault/internal/state"
	"github.com/starford/coursevault/internal/testutil"
)

var t0 = time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)

type fetchKey struct {
	course string
	kind   models.Kind
}

// fakeSource serves canned items and scripted errors per course and kind.
type fakeSource struct {
	mu     sync.Mutex
	items  map[fetchKey][]models.SourceItem
	errs   map[fetchKey][]error
	calls  map[fetchKey]int
	before func()
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		items: map[fetchKey][]models.SourceItem{},
		errs:  map[fetchKey][]error{},
		calls: map[fetchKey]int{},
	}
}

func (f *fakeSource) FetchItems(_ context.Context, courseID string, kind models.Kind, _ *time.Time) ([]models.SourceItem, error) {
	if f.before != nil {
		f.before()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := fetchKey{courseID, kind}
	n := f.calls[k]
	f.calls[k]++
	if n < len(f.errs[k]) && f.errs[k][n] != nil {
		return nil, f.errs[k][n]
	}
	return f.items[k], nil
}

type recordingNotifier struct {
	started   []string
	completed []*models.RunSummary
}

func (n *recordingNotifier) SyncStarted(runID string)           { n.started = append(n.started, runID) }
func (n *recordingNotifier) SyncCompleted(s *models.RunSummary) { n.completed = append(n.completed, s) }

func newSyncer(t *testing.T, src Source) (*Syncer, *state.DB, *recordingNotifier) {
	t.Helper()
	dir, fsys := testutil.TestVault(t)
	db := testutil.TestDB(t, dir)
	n := &recordingNotifier{}
	s := New(Options{
		Source:   src,
		Store:    db,
		Files:    fsys,
		Renderer: render.New(time.UTC),
		Notifier: n,
		Logger:   testutil.Logger(),
		Now:      testutil.Clock(t0.Add(time.Hour)),
	})
	return s, db, n
}

var course = models.Course{ID: testutil.CourseID, Name: testutil.CourseName}

func TestRun_AggregatesWritesPerKind(t *testing.T) {
	src := newFakeSource()
	src.items[fetchKey{course.ID, models.KindAssignment}] = []models.SourceItem{
		testutil.Assignment("1", "Homework 1", t0),
		testutil.Assignment("2", "Homework 2", t0),
	}
	src.items[fetchKey{course.ID, models.KindEvent}] = []models.SourceItem{
		testutil.Event("9", "Midterm", t0.Add(72*time.Hour)),
	}
	s, db, n := newSyncer(t, src)

	sum, err := s.Run(context.Background(), []models.Course{course})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Written[models.KindAssignment] != 2 || sum.Written[models.KindEvent] != 1 || !sum.OK() {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.CoursesSynced) != 1 || sum.CoursesSynced[0] != testutil.CourseName {
		t.Errorf("courses synced = %v", sum.CoursesSynced)
	}
	if sum.RunID == "" || len(n.started) != 1 || n.started[0] != sum.RunID || len(n.completed) != 1 {
		t.Errorf("notifications: started %v completed %d", n.started, len(n.completed))
	}

	saved, err := db.LastRunSummary()
	if err != nil {
		t.Fatalf("LastRunSummary: %v", err)
	}
	if saved.RunID != sum.RunID || saved.TotalWritten() != 3 {
		t.Errorf("saved = %+v", saved)
	}

	again, err := s.Run(context.Background(), []models.Course{course})
	if err != nil {
		t.Fatal(err)
	}
	if again.TotalWritten() != 0 || again.NoChanges != 3 {
		t.Errorf("second run = %+v", again)
	}
}

func TestRun_NoCourses(t *testing.T) {
	s, _, _ := newSyncer(t, newFakeSource())
	if _, err := s.Run(context.Background(), nil); !errors.Is(err, apperr.ErrNoCollections) {
		t.Errorf("err = %v, want ErrNoCollections", err)
	}
}

func TestRun_FetchErrorIsolated(t *testing.T) {
	src := newFakeSource()
	other := models.Course{ID: "999", Name: "Math 221"}
	src.errs[fetchKey{course.ID, models.KindAssignment}] = []error{&canvas.APIError{StatusCode: 404, Message: "not found"}}
	src.items[fetchKey{course.ID, models.KindEvent}] = []models.SourceItem{testutil.Event("9", "Midterm", t0)}
	src.items[fetchKey{other.ID, models.KindAssignment}] = []models.SourceItem{testutil.Assignment("5", "Proof", t0)}
	s, _, _ := newSyncer(t, src)

	sum, err := s.Run(context.Background(), []models.Course{course, other})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sum.Errors) != 1 || !strings.HasPrefix(sum.Errors[0], "Assignments for CS 101: ") {
		t.Fatalf("errors = %v", sum.Errors)
	}
	if sum.Written[models.KindEvent] != 1 || sum.Written[models.KindAssignment] != 1 {
		t.Errorf("written = %v", sum.Written)
	}
	if sum.OK() {
		t.Error("summary with errors reported OK")
	}
}

func TestRun_TransientRetriedToSuccess(t *testing.T) {
	src := newFakeSource()
	k := fetchKey{course.ID, models.KindAssignment}
	transient := &canvas.APIError{StatusCode: 503, Transient: true}
	src.errs[k] = []error{transient, transient}
	src.items[k] = []models.SourceItem{testutil.Assignment("1", "Homework 1", t0)}

	policy := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	s, _, _ := newSyncer(t, canvas.NewRetryingSource(src, policy, testutil.Logger()))

	sum, err := s.Run(context.Background(), []models.Course{course})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sum.OK() || sum.Written[models.KindAssignment] != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if src.calls[k] != 3 {
		t.Errorf("calls = %d, want 3", src.calls[k])
	}
}

func TestRun_ItemErrorNamesItem(t *testing.T) {
	src := newFakeSource()
	bad := testutil.Assignment("7", "Broken", t0)
	bad.Assignment = nil
	src.items[fetchKey{course.ID, models.KindAssignment}] = []models.SourceItem{bad, testutil.Assignment("8", "Fine", t0)}
	s, _, _ := newSyncer(t, src)

	sum, err := s.Run(context.Background(), []models.Course{course})
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Errors) != 1 || !strings.HasPrefix(sum.Errors[0], "assignment 7: ") {
		t.Errorf("errors = %v", sum.Errors)
	}
	if sum.Written[models.KindAssignment] != 1 {
		t.Errorf("written = %v", sum.Written)
	}
}

func TestRun_CancelledBetweenItems(t *testing.T) {
	src := newFakeSource()
	src.items[fetchKey{course.ID, models.KindAssignment}] = []models.SourceItem{testutil.Assignment("1", "A", t0)}
	src.items[fetchKey{course.ID, models.KindEvent}] = []models.SourceItem{testutil.Event("9", "E", t0)}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	src.before = func() {
		calls++
		if calls == 2 {
			cancel()
		}
	}
	s, _, _ := newSyncer(t, src)

	sum, err := s.Run(ctx, []models.Course{course})
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Cancelled || sum.Written[models.KindAssignment] != 1 || sum.Written[models.KindEvent] != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRun_StoreUnavailable(t *testing.T) {
	s, db, n := newSyncer(t, newFakeSource())
	db.Close()
	_, err := s.Run(context.Background(), []models.Course{course})
	if !errors.Is(err, apperr.ErrStoreUnavailable) || !IsFatal(err) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
	if len(n.started) != 0 {
		t.Error("run started despite unavailable store")
	}
}

func TestAcquire_Busy(t *testing.T) {
	s, _, _ := newSyncer(t, newFakeSource())
	release, err := s.Acquire(0)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Busy() {
		t.Error("Busy = false while locked")
	}
	if _, err := s.Acquire(10 * time.Millisecond); !errors.Is(err, apperr.ErrSyncBusy) {
		t.Errorf("err = %v, want ErrSyncBusy", err)
	}
	if _, err := s.Run(context.Background(), []models.Course{course}); !errors.Is(err, apperr.ErrSyncBusy) {
		t.Errorf("Run err = %v, want ErrSyncBusy", err)
	}
	release()
	if s.Busy() {
		t.Error("Busy = true after release")
	}
}

func TestStart_Background(t *testing.T) {
	src := newFakeSource()
	src.items[fetchKey{course.ID, models.KindAssignment}] = []models.SourceItem{testutil.Assignment("1", "A", t0)}
	s, _, _ := newSyncer(t, src)

	done, err := s.Start(context.Background(), []models.Course{course})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case sum := <-done:
		if sum == nil || sum.Written[models.KindAssignment] != 1 {
			t.Errorf("summary = %+v", sum)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("background run did not finish")
	}
	if s.Busy() {
		t.Error("lock held after background run")
	}
}
