// Package scheduler triggers a job once a day at a fixed wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Daily fires at HH:MM every day in its location.
type Daily struct {
	hour, minute int
	loc          *time.Location
	logger       *slog.Logger
	clock        clockwork.Clock
}

// ParseClock parses an "HH:MM" 24-hour clock time.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("scheduler: invalid time %q (want HH:MM): %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NewDaily returns a schedule firing at clock ("HH:MM") in loc (local time
// when nil).
func NewDaily(clock string, loc *time.Location, logger *slog.Logger) (*Daily, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Daily{hour: h, minute: m, loc: loc, logger: logger, clock: clockwork.NewRealClock()}, nil
}

// Next returns the first firing time strictly after t.
func (d *Daily) Next(t time.Time) time.Time {
	local := t.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next
}

// Run calls job at every firing time until ctx is cancelled. Runs never
// overlap: a firing that lands while job is still running is skipped.
func (d *Daily) Run(ctx context.Context, job func(ctx context.Context)) error {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(d.loc),
		gocron.WithClock(d.clock),
		gocron.WithLogger(d.logger),
	)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	j, err := s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(d.hour), uint(d.minute), 0))),
		gocron.NewTask(func(jobCtx context.Context) {
			job(jobCtx)
			d.logNext()
		}),
		gocron.WithName("daily-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithContext(ctx),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("scheduler: %w", err)
	}
	s.Start()
	if next, err := j.NextRun(); err == nil && !next.IsZero() {
		d.logger.Info("scheduler: next sync", slog.String("at", next.In(d.loc).Format(time.RFC3339)))
	}

	<-ctx.Done()
	if err := s.Shutdown(); err != nil {
		d.logger.Warn("scheduler: shutdown", slog.String("error", err.Error()))
	}
	d.logger.Info("scheduler: stopped")
	return nil
}

func (d *Daily) logNext() {
	next := d.Next(d.clock.Now())
	d.logger.Info("scheduler: next sync", slog.String("at", next.Format(time.RFC3339)))
}
