// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/coursevault/internal/api"
	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/canvas"
	"github.com/starford/coursevault/internal/mcpserver"
	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/notepath"
	"github.com/starford/coursevault/internal/render"
	"github.com/starford/coursevault/internal/scheduler"
	"github.com/starford/coursevault/internal/sse"
	"github.com/starford/coursevault/internal/state"
	"github.com/starford/coursevault/internal/storage"
	"github.com/starford/coursevault/internal/syncer"
	"github.com/starford/coursevault/internal/syncservice"
	"github.com/starford/coursevault/internal/watch"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	files   *storage.FS
	db      *state.DB
	client  *canvas.Client
	syncer  *syncer.Syncer
	svc     *syncservice.Service
	closers []func() error
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup wires storage, state, the Canvas source and the sync service.
// notifier may be nil. next, when set, reports the next scheduled run.
func setup(app *application, logFile string, notifier syncer.Notifier, next func() time.Time) (*runtime, error) {
	cfg := app.config

	logger, closeLog, err := newLogger(app.logOut, cfg.App.LogLevel, logFile)
	if err != nil {
		return nil, fmt.Errorf("init log file: %w", err)
	}
	slog.SetDefault(logger)
	rt := &runtime{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.DBPath()),
		slog.String("canvas_url", cfg.Canvas.BaseURL),
		slog.String("sync_time", cfg.Sync.Time),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		rt.Close()
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	rt.files, err = storage.NewFS(cfg.Vault.Path)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	rt.db, err = state.Open(cfg.DBPath())
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init state: %w", err)
	}
	rt.closers = append(rt.closers, rt.db.Close)

	rt.client, err = canvas.New(cfg.Canvas.ClientOptions())
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init canvas client: %w", err)
	}

	loc, err := cfg.Sync.Location()
	if err != nil {
		rt.Close()
		return nil, err
	}

	renderer := render.New(loc)
	rt.syncer = syncer.New(syncer.Options{
		Source:   canvas.NewRetryingSource(rt.client, cfg.Sync.Retry.Policy(), logger),
		Store:    rt.db,
		Files:    rt.files,
		Renderer: renderer,
		Todo:     renderer,
		Resolver: notepath.New(notepath.Options{}),
		Notifier: notifier,
		Logger:   logger,
	})
	rt.svc = syncservice.New(syncservice.Options{
		Runner:  rt.syncer,
		Store:   rt.db,
		Files:   rt.files,
		Courses: rt.client,
		Pinned:  cfg.Sync.CourseList(),
		NextRun: next,
		Logger:  logger,
	})
	return rt, nil
}

func newScheduler(cfg *Config, logger *slog.Logger) (*scheduler.Daily, error) {
	loc, err := cfg.Sync.Location()
	if err != nil {
		return nil, err
	}
	return scheduler.NewDaily(cfg.Sync.Time, loc, logger)
}

// scheduledSync is the scheduler job. A run already in progress or an
// empty selection skips the firing.
func scheduledSync(svc *syncservice.Service, logger *slog.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		summary, err := svc.RunSync(ctx)
		switch {
		case errors.Is(err, apperr.ErrSyncBusy):
			logger.Warn("scheduler: sync already running, skipped")
		case errors.Is(err, apperr.ErrNoCollections):
			logger.Warn("scheduler: no courses selected, skipped")
		case err != nil:
			logger.Error("scheduler: sync failed", slog.String("error", err.Error()))
		case !summary.OK():
			logger.Warn("scheduler: sync finished with errors", slog.Int("errors", len(summary.Errors)))
		}
	}
}

// waitSignal blocks until SIGINT/SIGTERM or ctx ends.
func waitSignal(ctx context.Context, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}
}

// errStop ends an errgroup once a shutdown signal arrives.
var errStop = errors.New("shutdown requested")

// Run starts the HTTP API with SSE, the daily scheduler and the vault
// watcher, and blocks until a shutdown signal.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	var daily *scheduler.Daily
	rt, err := setup(app, cfg.App.LogFile, broker, func() time.Time { return daily.Next(time.Now()) })
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	daily, err = newScheduler(cfg, logger)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	apiRouter := api.NewRouter(gCtx, rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := rt.db.AllPaths(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"state store unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g.Go(func() error {
		if err := watch.Watch(gCtx, rt.db, rt.files, rt.files.Root(), logger, broker); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		return daily.Run(gCtx, scheduledSync(rt.svc, logger))
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		waitSignal(gCtx, logger)
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errStop
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errStop) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunDaemon runs the daily scheduler only, logging to the rotating log
// file, until a shutdown signal.
func RunDaemon(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	var daily *scheduler.Daily
	rt, err := setup(app, cfg.DaemonLogFile(), nil, func() time.Time { return daily.Next(time.Now()) })
	if err != nil {
		return err
	}
	defer rt.Close()

	daily, err = newScheduler(cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return daily.Run(gCtx, scheduledSync(rt.svc, rt.logger))
	})
	g.Go(func() error {
		waitSignal(gCtx, rt.logger)
		return errStop
	})
	if err := g.Wait(); err != nil && !errors.Is(err, errStop) {
		return err
	}
	rt.logger.Info("Daemon stopped")
	return nil
}

// RunSync performs one sync run. SIGINT/SIGTERM cancel it between items.
func RunSync(ctx context.Context, opts ...Option) (*models.RunSummary, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	rt, err := setup(app, app.config.App.LogFile, nil, nil)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rt.svc.RunSync(ctx)
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	rt, err := setup(app, app.config.App.LogFile, nil, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc, app.version).ServeStdio()
}

// ListCourses returns the active courses upstream.
func ListCourses(ctx context.Context, opts ...Option) ([]models.Course, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := newLogger(app.logOut, app.config.App.LogLevel, app.config.App.LogFile)
	if err != nil {
		return nil, err
	}
	defer closeLog()
	slog.SetDefault(logger)

	client, err := canvas.New(app.config.Canvas.ClientOptions())
	if err != nil {
		return nil, fmt.Errorf("init canvas client: %w", err)
	}
	return client.ListCourses(ctx)
}

// PrintSummary writes a human-readable run summary.
func PrintSummary(w io.Writer, s *models.RunSummary) {
	fmt.Fprintf(w, "Run %s (%s)\n", s.RunID, s.CompletedAt.Sub(s.StartedAt).Round(time.Millisecond))
	for _, kind := range models.Kinds {
		fmt.Fprintf(w, "  %-24s %d\n", kind.Label()+" written:", s.Written[kind])
	}
	fmt.Fprintf(w, "  %-24s %d\n", "Skipped (edited):", s.LocallyEdited)
	fmt.Fprintf(w, "  %-24s %d\n", "Skipped (unchanged):", s.NoChanges)
	if len(s.CoursesSynced) > 0 {
		fmt.Fprintf(w, "  Courses: %v\n", s.CoursesSynced)
	}
	if s.Cancelled {
		fmt.Fprintln(w, "  Run was cancelled before completion.")
	}
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
}
