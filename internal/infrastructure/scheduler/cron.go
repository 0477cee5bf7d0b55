package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsCaster/internal/ports"
)

// CronScheduler runs jobs on standard five-field cron expressions.
type CronScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating expressions in loc.
// A job still running when its next tick arrives is skipped for that tick.
func NewCronScheduler(loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	opts := []cron.Option{cron.WithLocation(loc)}
	if logger != nil {
		opts = append(opts, cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger}), cron.Recover(cronLogger{logger})))
	} else {
		opts = append(opts, cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	}
	return &CronScheduler{cron: cron.New(opts...), logger: logger}
}

// Add registers job on the cron expression expr.
func (c *CronScheduler) Add(expr string, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if _, err := c.cron.AddFunc(expr, func() { job(time.Now()) }); err != nil {
		return fmt.Errorf("schedule %q: %w", expr, err)
	}
	return nil
}

// Start begins dispatching; the scheduler stops on its own when ctx ends.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.running = true
	c.cron.Start()

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports the upcoming run times, for diagnostics.
func (c *CronScheduler) Next() []time.Time {
	entries := c.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		next = append(next, e.Next)
	}
	return next
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
