package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/ports"
)

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("dispatcher stopped")

// LocalDispatcher runs tasks in-process on a bounded pool of goroutines.
// Retries are delayed with timers; nothing survives a restart.
type LocalDispatcher struct {
	handler    Handler
	policy     Policy
	deadLetter DeadLetterFunc
	workers    int
	logger     *slog.Logger

	tasks chan domain.Task
	done  chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	timers  map[*time.Timer]struct{}

	workerWG sync.WaitGroup
	sending  sync.WaitGroup
	inflight sync.WaitGroup
}

var _ ports.Dispatcher = (*LocalDispatcher)(nil)

// LocalOptions tunes the pool.
type LocalOptions struct {
	Workers    int
	Buffer     int
	DeadLetter DeadLetterFunc
	Logger     *slog.Logger
}

// NewLocal builds an idle dispatcher; call Start to begin delivery.
func NewLocal(handler Handler, policy Policy, opts LocalOptions) *LocalDispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Buffer < 1 {
		opts.Buffer = 64
	}
	return &LocalDispatcher{
		handler:    handler,
		policy:     policy,
		deadLetter: opts.DeadLetter,
		workers:    opts.Workers,
		logger:     opts.Logger,
		tasks:      make(chan domain.Task, opts.Buffer),
		done:       make(chan struct{}),
		timers:     map[*time.Timer]struct{}{},
	}
}

// Start launches the workers. They exit when ctx ends or Stop is called.
func (d *LocalDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.workerWG.Add(1)
		go d.loop(ctx)
	}
}

// Enqueue accepts a task for delivery.
func (d *LocalDispatcher) Enqueue(ctx context.Context, task domain.Task) error {
	if task.ArticleID == "" {
		return fmt.Errorf("enqueue: empty article id")
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrStopped
	}
	d.inflight.Add(1)
	d.sending.Add(1)
	d.mu.Unlock()
	defer d.sending.Done()

	task = Prepare(task, time.Now())
	select {
	case d.tasks <- task:
		return nil
	case <-d.done:
		d.inflight.Done()
		return ErrStopped
	case <-ctx.Done():
		d.inflight.Done()
		return ctx.Err()
	}
}

// Wait blocks until every accepted task succeeded, was dead-lettered or dropped by Stop.
func (d *LocalDispatcher) Wait() {
	d.inflight.Wait()
}

// Stop refuses new tasks, cancels pending retries and waits for running handlers.
func (d *LocalDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.done)
	for timer := range d.timers {
		if timer.Stop() {
			d.inflight.Done()
		}
		delete(d.timers, timer)
	}
	d.mu.Unlock()

	d.workerWG.Wait()
	d.sending.Wait()
	for {
		select {
		case <-d.tasks:
			d.inflight.Done()
		default:
			return
		}
	}
}

func (d *LocalDispatcher) loop(ctx context.Context) {
	defer d.workerWG.Done()
	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case task := <-d.tasks:
			d.run(ctx, task)
		}
	}
}

func (d *LocalDispatcher) run(ctx context.Context, task domain.Task) {
	err := d.handler(ctx, task)
	if err == nil {
		d.inflight.Done()
		return
	}

	if ctx.Err() != nil {
		d.debug("task dropped on shutdown", "article_id", task.ArticleID, "attempt", task.Attempt, "error", err)
		d.inflight.Done()
		return
	}

	delay, again := d.policy.NextAttempt(task, err)
	if !again {
		d.warn("task dead-lettered", "article_id", task.ArticleID, "attempt", task.Attempt, "error", err)
		if d.deadLetter != nil {
			d.deadLetter(ctx, task, err)
		}
		d.inflight.Done()
		return
	}

	next := Redelivery(task, err)
	d.debug("task scheduled for retry", "article_id", task.ArticleID, "attempt", next.Attempt, "delay", delay, "error", err)
	d.schedule(next, delay)
}

func (d *LocalDispatcher) schedule(task domain.Task, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		d.inflight.Done()
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, timer)
		if d.stopped {
			d.mu.Unlock()
			d.inflight.Done()
			return
		}
		d.sending.Add(1)
		d.mu.Unlock()
		defer d.sending.Done()

		select {
		case d.tasks <- task:
		case <-d.done:
			d.inflight.Done()
		}
	})
	d.timers[timer] = struct{}{}
}

func (d *LocalDispatcher) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *LocalDispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
