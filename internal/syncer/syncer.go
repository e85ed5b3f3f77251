// Package syncer drives a sync run: it enumerates courses and kinds, feeds
// every fetched item through the reconciliation engine and aggregates the
// outcome into a run summary.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/notepath"
	"github.com/starford/coursevault/internal/reconcile"
)

// Source yields the items of one kind for one course.
type Source interface {
	FetchItems(ctx context.Context, courseID string, kind models.Kind, since *time.Time) ([]models.SourceItem, error)
}

// Store is the state the orchestrator needs: the engine's record access
// plus persistence of the run summary.
type Store interface {
	reconcile.Store
	SaveRunSummary(s *models.RunSummary) error
}

// Notifier is told when runs start and finish.
type Notifier interface {
	SyncStarted(runID string)
	SyncCompleted(summary *models.RunSummary)
}

// TodoRenderer renders the master TODO note from a run's assignments.
type TodoRenderer interface {
	TodoList(items []models.SourceItem) (string, error)
}

// Options configures a Syncer.
type Options struct {
	Source   Source
	Store    Store
	Files    reconcile.Files
	Renderer reconcile.Renderer
	Resolver *notepath.Resolver
	Notifier Notifier
	// Todo, when set, rewrites the TODO note at TodoPath after every run.
	Todo     TodoRenderer
	TodoPath string
	Logger   *slog.Logger
	Now      func() time.Time
	// Kinds limits the kinds fetched per course; all kinds when empty.
	Kinds []models.Kind
	// LockWait is how long Run waits for a concurrent run to finish.
	LockWait time.Duration
}

// Syncer runs sync passes, one at a time.
type Syncer struct {
	opts Options
	lock chan struct{}
}

// New returns a Syncer.
func New(opts Options) *Syncer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.Kinds) == 0 {
		opts.Kinds = models.Kinds
	}
	if opts.TodoPath == "" {
		opts.TodoPath = path.Join(notepath.DefaultRoot, "TODO.md")
	}
	return &Syncer{opts: opts, lock: make(chan struct{}, 1)}
}

// Acquire takes the run lock, waiting at most timeout. It returns
// apperr.ErrSyncBusy when another run holds the lock.
func (s *Syncer) Acquire(timeout time.Duration) (release func(), err error) {
	release = func() { <-s.lock }
	select {
	case s.lock <- struct{}{}:
		return release, nil
	default:
	}
	if timeout <= 0 {
		return nil, apperr.ErrSyncBusy
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case s.lock <- struct{}{}:
		return release, nil
	case <-t.C:
		return nil, apperr.ErrSyncBusy
	}
}

// Busy reports whether a run is in progress.
func (s *Syncer) Busy() bool {
	return len(s.lock) > 0
}

// Run performs one sync pass over courses. Course and item failures are
// collected in the summary; an error is returned only when no course is
// given, another run is active, or the state store cannot be read.
// Cancelling ctx stops the run between items and marks the summary.
func (s *Syncer) Run(ctx context.Context, courses []models.Course) (*models.RunSummary, error) {
	if len(courses) == 0 {
		return nil, apperr.ErrNoCollections
	}
	release, err := s.Acquire(s.opts.LockWait)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.run(ctx, courses)
}

// Start takes the run lock without waiting and performs the run in the
// background. The returned channel yields the summary (nil when the run
// could not start) and is then closed.
func (s *Syncer) Start(ctx context.Context, courses []models.Course) (<-chan *models.RunSummary, error) {
	if len(courses) == 0 {
		return nil, apperr.ErrNoCollections
	}
	release, err := s.Acquire(0)
	if err != nil {
		return nil, err
	}
	done := make(chan *models.RunSummary, 1)
	go func() {
		defer close(done)
		summary, err := s.run(ctx, courses)
		release()
		if err != nil {
			s.opts.Logger.Error("syncer: background run failed", slog.String("error", err.Error()))
		}
		done <- summary
	}()
	return done, nil
}

func (s *Syncer) run(ctx context.Context, courses []models.Course) (*models.RunSummary, error) {
	engine, err := reconcile.New(reconcile.Deps{
		Store:    s.opts.Store,
		Files:    s.opts.Files,
		Renderer: s.opts.Renderer,
		Resolver: s.opts.Resolver,
		Logger:   s.opts.Logger,
		Now:      s.opts.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("syncer: %w", err)
	}

	summary := models.NewRunSummary(uuid.NewString(), s.opts.Now().UTC())
	log := s.opts.Logger.With(slog.String("run_id", summary.RunID))
	log.Info("syncer: run started", slog.Int("courses", len(courses)))
	if s.opts.Notifier != nil {
		s.opts.Notifier.SyncStarted(summary.RunID)
	}

	var assignments []models.SourceItem
	todoComplete := slices.Contains(s.opts.Kinds, models.KindAssignment)

outer:
	for _, course := range courses {
		label := course.DisplayName()
		fetched := false
		for _, kind := range s.opts.Kinds {
			if ctx.Err() != nil {
				summary.Cancelled = true
				break outer
			}
			items, err := s.opts.Source.FetchItems(ctx, course.ID, kind, nil)
			if err != nil {
				if ctx.Err() != nil {
					summary.Cancelled = true
					break outer
				}
				if kind == models.KindAssignment {
					todoComplete = false
				}
				msg := fmt.Sprintf("%s for %s: %v", kind.Label(), label, err)
				summary.Errors = append(summary.Errors, msg)
				log.Warn("syncer: fetch failed",
					slog.String("course", label),
					slog.String("kind", string(kind)),
					slog.String("error", err.Error()))
				continue
			}
			fetched = true
			if kind == models.KindAssignment {
				assignments = append(assignments, withCourse(items, course, label)...)
			}
			if !s.reconcileAll(ctx, engine, course, label, items, summary) {
				summary.Cancelled = true
				break outer
			}
		}
		if fetched {
			summary.CoursesSynced = append(summary.CoursesSynced, label)
		}
	}

	if s.opts.Todo != nil && todoComplete && !summary.Cancelled {
		if err := s.writeTodo(assignments, log); err != nil {
			summary.Errors = append(summary.Errors, "todo list: "+err.Error())
			log.Warn("syncer: todo list", slog.String("error", err.Error()))
		}
	}

	summary.CompletedAt = s.opts.Now().UTC()
	if err := s.opts.Store.SaveRunSummary(summary); err != nil {
		log.Warn("syncer: save summary", slog.String("error", err.Error()))
	}
	log.Info("syncer: run finished",
		slog.Int("written", summary.TotalWritten()),
		slog.Int("skipped_locally_edited", summary.LocallyEdited),
		slog.Int("skipped_no_changes", summary.NoChanges),
		slog.Int("errors", len(summary.Errors)),
		slog.Bool("cancelled", summary.Cancelled))
	if s.opts.Notifier != nil {
		s.opts.Notifier.SyncCompleted(summary)
	}
	return summary, nil
}

// reconcileAll processes items in source order. It returns false when ctx
// was cancelled before every item was handled.
func (s *Syncer) reconcileAll(ctx context.Context, engine *reconcile.Engine, course models.Course, label string, items []models.SourceItem, summary *models.RunSummary) bool {
	for _, item := range items {
		if ctx.Err() != nil {
			return false
		}
		res := engine.Reconcile(ctx, fillCourse(item, course, label))
		summary.Add(res)
		if res.Err != nil {
			summary.Errors = append(summary.Errors, itemError(res))
		}
	}
	return true
}

// writeTodo rewrites the TODO note when its text changed. A missing file is
// created; an identical one is left untouched.
func (s *Syncer) writeTodo(items []models.SourceItem, log *slog.Logger) error {
	text, err := s.opts.Todo.TodoList(items)
	if err != nil {
		return err
	}
	current, err := s.opts.Files.Read(s.opts.TodoPath)
	switch {
	case err == nil && string(current) == text:
		log.Debug("syncer: todo list unchanged", slog.String("path", s.opts.TodoPath))
		return nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", apperr.ErrRead, err)
	}
	if err := s.opts.Files.Write(s.opts.TodoPath, []byte(text)); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrWrite, err)
	}
	log.Info("syncer: todo list written", slog.String("path", s.opts.TodoPath), slog.Int("assignments", len(items)))
	return nil
}

func fillCourse(item models.SourceItem, course models.Course, label string) models.SourceItem {
	if item.CourseID == "" {
		item.CourseID = course.ID
	}
	if item.CourseName == "" {
		item.CourseName = label
	}
	return item
}

func withCourse(items []models.SourceItem, course models.Course, label string) []models.SourceItem {
	out := make([]models.SourceItem, len(items))
	for i, it := range items {
		out[i] = fillCourse(it, course, label)
	}
	return out
}

func itemError(r models.ItemResult) string {
	msg := fmt.Sprintf("%s %s", r.Key.Kind, r.Key.ID)
	if r.Name != "" {
		msg += fmt.Sprintf(" (%s)", r.Name)
	}
	return msg + ": " + r.Err.Error()
}

// IsFatal reports whether err from Run means no run took place.
func IsFatal(err error) bool {
	return errors.Is(err, apperr.ErrStoreUnavailable) || errors.Is(err, apperr.ErrNoCollections)
}
