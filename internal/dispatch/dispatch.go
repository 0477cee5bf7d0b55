// Package dispatch delivers audio-generation tasks to a handler at least once,
// retrying failures with exponential backoff until the attempt budget is spent.
package dispatch

import (
	"context"
	"time"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/retry"
)

const maxLastError = 500

// Handler processes one task. Returning an error schedules a retry unless the
// error is marked with retry.Permanent or the attempt budget is exhausted.
type Handler func(ctx context.Context, task domain.Task) error

// DeadLetterFunc observes tasks that will never be retried again.
type DeadLetterFunc func(ctx context.Context, task domain.Task, err error)

// Policy bounds redelivery.
type Policy struct {
	MaxAttempts int
	Backoff     retry.Policy
}

// NextAttempt decides whether task should run again after err, and when.
func (p Policy) NextAttempt(task domain.Task, err error) (time.Duration, bool) {
	if err == nil || retry.IsPermanent(err) {
		return 0, false
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if task.Attempt >= maxAttempts {
		return 0, false
	}
	return p.Backoff.Backoff(task.Attempt), true
}

// Prepare stamps a fresh task before its first delivery.
func Prepare(task domain.Task, now time.Time) domain.Task {
	if task.Attempt < 1 {
		task.Attempt = 1
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = now.UTC()
	}
	return task
}

// Redelivery returns the task as it should be scheduled after err.
func Redelivery(task domain.Task, err error) domain.Task {
	task.Attempt++
	if err != nil {
		task.LastError = domain.ClipReason(err.Error(), maxLastError)
	}
	return task
}
