package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/logging"
	"NewsCaster/internal/ports"
)

// backlogLookback bounds how far back the requeue sweep looks for articles without audio.
const backlogLookback = 48 * time.Hour

// Schedule names the cron expressions of the recurring jobs; empty disables a job.
type Schedule struct {
	Ingest   string
	Assemble string
}

// Scheduler wires the cron driver with the ingestion and assembly use cases.
type Scheduler struct {
	driver    ports.Scheduler
	collector *Collector
	assembler *Assembler
	schedule  Schedule
	log       *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, collector *Collector, assembler *Assembler, schedule Schedule, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{
		driver:    driver,
		collector: collector,
		assembler: assembler,
		schedule:  schedule,
		log:       logger,
	}
}

// Start registers the jobs with the provided scheduler and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	if s.collector != nil && s.schedule.Ingest != "" {
		err := s.driver.Add(s.schedule.Ingest, func(trigger time.Time) {
			s.ingest(ctx, trigger)
		})
		if err != nil {
			return fmt.Errorf("schedule ingest: %w", err)
		}
	}

	if s.assembler != nil && s.schedule.Assemble != "" {
		err := s.driver.Add(s.schedule.Assemble, func(time.Time) {
			s.assemble(ctx)
		})
		if err != nil {
			return fmt.Errorf("schedule assemble: %w", err)
		}
	}

	return s.driver.Start(ctx)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) ingest(ctx context.Context, trigger time.Time) {
	if _, err := s.collector.Collect(ctx); err != nil {
		s.log.Error("scheduled ingest failed", "error", err)
	}
	if _, err := s.collector.Requeue(ctx, trigger.Add(-backlogLookback), 0); err != nil {
		s.log.Error("backlog requeue failed", "error", err)
	}
}

func (s *Scheduler) assemble(ctx context.Context) {
	_, err := s.assembler.Assemble(ctx)
	switch {
	case errors.Is(err, domain.ErrNoEpisodes):
	case err != nil:
		s.log.Error("scheduled assembly failed", "error", err)
	}
}
