// Package reconcile decides, item by item, whether a note is written,
// overwritten or left alone, and carries out that decision.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/checksum"
	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/notepath"
)

// Renderer produces the full note text for an item.
type Renderer interface {
	Render(item models.SourceItem) (string, error)
}

// Store is the part of the sync state store the engine uses.
type Store interface {
	Get(key models.ItemKey) (*models.SyncRecord, error)
	Put(rec models.SyncRecord) error
	SetPending(key models.ItemKey, hash string) error
	AllPaths() (map[string]models.ItemKey, error)
}

// Files reads and writes vault-relative note files.
type Files interface {
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Store    Store
	Files    Files
	Renderer Renderer
	Resolver *notepath.Resolver
	Logger   *slog.Logger
	Now      func() time.Time
}

// Engine reconciles items against the vault and the state store. It is
// built per run; calls to Reconcile are serialised.
type Engine struct {
	mu       sync.Mutex
	store    Store
	files    Files
	renderer Renderer
	resolver *notepath.Resolver
	logger   *slog.Logger
	now      func() time.Time

	owners *notepath.Owners
}

// New loads the recorded path ownership and returns an Engine. A store that
// cannot be read yields apperr.ErrStoreUnavailable.
func New(d Deps) (*Engine, error) {
	if d.Store == nil || d.Files == nil || d.Renderer == nil {
		return nil, errors.New("reconcile: store, files and renderer are required")
	}
	paths, err := d.Store.AllPaths()
	if err != nil {
		return nil, fmt.Errorf("reconcile: load paths: %w: %w", apperr.ErrStoreUnavailable, err)
	}
	if d.Resolver == nil {
		d.Resolver = notepath.New(notepath.Options{})
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Engine{
		store:    d.Store,
		files:    d.Files,
		renderer: d.Renderer,
		resolver: d.Resolver,
		logger:   d.Logger,
		now:      d.Now,
		owners:   notepath.NewOwners(paths),
	}, nil
}

// Reconcile processes one item. Failures are reported in the result, never
// returned, so a caller can move on to the next item.
func (e *Engine) Reconcile(ctx context.Context, item models.SourceItem) models.ItemResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := item.Key()
	res := models.ItemResult{Key: key, Name: item.DisplayName()}
	fail := func(err error) models.ItemResult {
		res.Action = models.ActionError
		res.Err = err
		e.logger.WarnContext(ctx, "reconcile: item failed",
			slog.String("kind", string(key.Kind)),
			slog.String("item_id", key.ID),
			slog.String("path", res.Path),
			slog.String("error", err.Error()))
		return res
	}

	target := e.resolver.ResolveItem(item, e.owners)
	res.Path = target

	text, err := e.render(item)
	if err != nil {
		return fail(classify(err, apperr.ErrRender, "render"))
	}
	candidate := checksum.String(text)

	rec, err := e.store.Get(key)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		rec = nil
	case err != nil:
		return fail(classify(err, apperr.ErrStateStore, "lookup"))
	}
	governing := rec
	if rec != nil && !notepath.SamePath(rec.FilePath, target) {
		governing = nil
	}

	obs := Observation{Record: governing, SourceModifiedAt: item.SourceModifiedAt}
	disk, err := e.files.Read(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fail(classify(err, apperr.ErrRead, "read"))
	default:
		obs.FileExists = true
		obs.DiskHash = checksum.Sum(disk)
	}

	res.Action, res.Reason = Decide(obs)

	if res.Action == models.ActionSkip {
		level := slog.LevelDebug
		if res.Reason == models.ReasonLocallyEdited {
			level = slog.LevelWarn
		}
		e.logger.Log(ctx, level, "reconcile: skipped",
			slog.String("path", target),
			slog.String("item_id", key.ID),
			slog.String("reason", string(res.Reason)))
		return res
	}

	synced := models.SyncRecord{
		Kind:             key.Kind,
		ItemID:           key.ID,
		CourseID:         item.CourseID,
		FilePath:         target,
		ContentHash:      candidate,
		SourceModifiedAt: item.SourceModifiedAt,
		SyncedAt:         e.now().UTC(),
	}

	// Same bytes as the unedited note: refresh the record only.
	if res.Reason == models.ReasonSourceUpdated && candidate == obs.DiskHash {
		if err := e.store.Put(synced); err != nil {
			return fail(classify(err, apperr.ErrStateStore, "refresh record"))
		}
		res.Action, res.Reason = models.ActionSkip, models.ReasonNoChanges
		e.logger.DebugContext(ctx, "reconcile: record refreshed",
			slog.String("path", target),
			slog.String("item_id", key.ID))
		return res
	}

	if governing != nil {
		if err := e.store.SetPending(key, candidate); err != nil {
			return fail(classify(err, apperr.ErrStateStore, "record intent"))
		}
	}

	if err := e.files.Write(target, []byte(text)); err != nil {
		if governing != nil {
			if cerr := e.store.SetPending(key, ""); cerr != nil {
				e.logger.WarnContext(ctx, "reconcile: clear write intent",
					slog.String("item_id", key.ID),
					slog.String("error", cerr.Error()))
			}
		}
		return fail(classify(err, apperr.ErrWrite, "write"))
	}

	if err := e.store.Put(synced); err != nil {
		return fail(classify(err, apperr.ErrStateStore, "record"))
	}

	if rec != nil && rec.FilePath != target {
		e.owners.Release(rec.FilePath)
	}
	e.owners.Claim(target, key)

	e.logger.InfoContext(ctx, "reconcile: note written",
		slog.String("path", target),
		slog.String("kind", string(key.Kind)),
		slog.String("item_id", key.ID),
		slog.String("reason", string(res.Reason)))
	return res
}

// render calls the Renderer, turning a panic into apperr.ErrRender.
func (e *Engine) render(item models.SourceItem) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", apperr.ErrRender, r)
		}
	}()
	return e.renderer.Render(item)
}

// classify tags err with sentinel unless it already carries it.
func classify(err, sentinel error, op string) error {
	if errors.Is(err, sentinel) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, err)
}
