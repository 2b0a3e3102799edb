package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsIntent/internal/logging"
	"NewsIntent/internal/ports"
)

// ScheduleOptions describes what each scheduled run covers.
type ScheduleOptions struct {
	Entities   []string
	WindowDays int
	Location   *time.Location
	// OnResult, when set, receives every completed run.
	OnResult func(Result)
}

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	opts     ScheduleOptions
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring trailing-window runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, opts ScheduleOptions, log *slog.Logger) *Scheduler {
	if opts.WindowDays < 1 {
		opts.WindowDays = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{driver: driver, pipeline: pipeline, opts: opts, logger: logging.OrDiscard(log)}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.RunOnce(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// RunOnce runs the pipeline for every entity over the window ending on trigger's day.
func (s *Scheduler) RunOnce(ctx context.Context, trigger time.Time) {
	start, end := Window(trigger, s.opts.WindowDays, s.opts.Location)

	for _, entity := range s.opts.Entities {
		if ctx.Err() != nil {
			return
		}

		result, err := s.pipeline.Run(ctx, Request{Entity: entity, Start: &start, End: &end})
		if err != nil {
			s.logger.Error("scheduled run failed", "entity", entity, "error", err)
			continue
		}
		s.logger.Info("scheduled run done", "entity", entity, "articles", len(result.Articles), "days", len(result.Counts.Dates()))
		if s.opts.OnResult != nil {
			s.opts.OnResult(result)
		}
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

// Window returns the feed bounds covering the last days calendar days up to and
// including trigger's day in loc. The feed's before/after operators are exclusive,
// so start is the day before the window and end the day after it.
func Window(trigger time.Time, days int, loc *time.Location) (start, end time.Time) {
	if days < 1 {
		days = 1
	}
	if loc == nil {
		loc = time.UTC
	}
	local := trigger.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return today.AddDate(0, 0, -days), today.AddDate(0, 0, 1)
}
