package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"NewsCaster/internal/dispatch"
	"NewsCaster/internal/domain"
	"NewsCaster/internal/ports"
)

const (
	promoteBatch  = 100
	settleTimeout = 5 * time.Second
)

// promoteDue moves due entries from the delayed set onto the pending list atomically.
var promoteDue = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, v in ipairs(due) do
  redis.call('ZREM', KEYS[1], v)
  redis.call('LPUSH', KEYS[2], v)
end
return #due
`)

// Keys names the Redis structures backing one queue.
type Keys struct {
	Pending    string
	Processing string
	Delayed    string
	Dead       string
}

// KeysFor derives queue keys from a prefix.
func KeysFor(prefix string) Keys {
	if prefix == "" {
		prefix = "newscaster"
	}
	base := prefix + ":queue:audio"
	return Keys{Pending: base, Processing: base + ":processing", Delayed: base + ":delayed", Dead: base + ":failed"}
}

// Stats reports queue depths.
type Stats struct {
	Pending    int64
	Processing int64
	Delayed    int64
	Dead       int64
}

// RedisDispatcher is a durable at-least-once task queue. Consumers move tasks from the
// pending list to a processing list with BLMOVE and remove them once the outcome is recorded:
// done, rescheduled in the delayed set scored by due time, or pushed to the dead-letter list.
type RedisDispatcher struct {
	client       redis.UniversalClient
	keys         Keys
	policy       dispatch.Policy
	pollInterval time.Duration
	deadLetter   dispatch.DeadLetterFunc
	now          func() time.Time
	logger       *slog.Logger
}

var _ ports.Dispatcher = (*RedisDispatcher)(nil)

// RedisOptions tunes consumption.
type RedisOptions struct {
	PollInterval time.Duration
	DeadLetter   dispatch.DeadLetterFunc
	Logger       *slog.Logger
}

// NewRedisDispatcher binds the queue to client.
func NewRedisDispatcher(client redis.UniversalClient, keys Keys, policy dispatch.Policy, opts RedisOptions) *RedisDispatcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &RedisDispatcher{
		client:       client,
		keys:         keys,
		policy:       policy,
		pollInterval: opts.PollInterval,
		deadLetter:   opts.DeadLetter,
		now:          time.Now,
		logger:       opts.Logger,
	}
}

// Enqueue pushes a task onto the pending list.
func (q *RedisDispatcher) Enqueue(ctx context.Context, task domain.Task) error {
	if task.ArticleID == "" {
		return fmt.Errorf("enqueue: empty article id")
	}
	payload, err := json.Marshal(dispatch.Prepare(task, q.now()))
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.keys.Pending, payload).Err(); err != nil {
		return fmt.Errorf("push task: %w", err)
	}
	return nil
}

// Run consumes tasks with the given number of workers until ctx ends.
func (q *RedisDispatcher) Run(ctx context.Context, workers int, handler dispatch.Handler) error {
	if workers < 1 {
		workers = 1
	}
	recovered, err := q.Recover(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		q.warn("recovered interrupted tasks", "count", recovered)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return q.promoteLoop(ctx) })
	for i := 0; i < workers; i++ {
		g.Go(func() error { return q.consume(ctx, handler) })
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Promote moves due retries back to the pending list and reports how many moved.
func (q *RedisDispatcher) Promote(ctx context.Context) (int, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	n, err := promoteDue.Run(ctx, q.client, []string{q.keys.Delayed, q.keys.Pending}, now, promoteBatch).Int()
	if err != nil {
		return 0, fmt.Errorf("promote delayed tasks: %w", err)
	}
	return n, nil
}

// Recover returns tasks left on the processing list by a consumer that stopped mid-task to
// the front of the pending list. Consumers sharing the queue may see such a task twice;
// the audio claim absorbs the duplicate.
func (q *RedisDispatcher) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.keys.Processing, q.keys.Pending, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover processing tasks: %w", err)
		}
		n++
	}
}

// Stats returns the current queue depths.
func (q *RedisDispatcher) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	pending := pipe.LLen(ctx, q.keys.Pending)
	processing := pipe.LLen(ctx, q.keys.Processing)
	delayed := pipe.ZCard(ctx, q.keys.Delayed)
	dead := pipe.LLen(ctx, q.keys.Dead)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Pending: pending.Val(), Processing: processing.Val(), Delayed: delayed.Val(), Dead: dead.Val()}, nil
}

func (q *RedisDispatcher) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := q.Promote(ctx); err != nil && ctx.Err() == nil {
				q.warn("promote failed", "error", err)
			}
		}
	}
}

func (q *RedisDispatcher) consume(ctx context.Context, handler dispatch.Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := q.client.BLMove(ctx, q.keys.Pending, q.keys.Processing, "RIGHT", "LEFT", q.pollInterval).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.warn("pop failed", "error", err)
			if !sleep(ctx, q.pollInterval) {
				return ctx.Err()
			}
			continue
		}

		var task domain.Task
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			q.warn("discarding malformed task", "payload", raw, "error", err)
			q.settle(ctx, raw, func(pipe redis.Pipeliner, sctx context.Context) {
				pipe.LPush(sctx, q.keys.Dead, raw)
			})
			continue
		}
		q.handle(ctx, handler, raw, task)
	}
}

// handle runs one task and records its outcome. Outcome writes use a context detached
// from ctx so a shutdown mid-task still leaves the task in exactly one list.
func (q *RedisDispatcher) handle(ctx context.Context, handler dispatch.Handler, raw string, task domain.Task) {
	err := handler(ctx, task)
	if err == nil {
		q.settle(ctx, raw, nil)
		return
	}

	if ctx.Err() != nil {
		q.debug("task interrupted by shutdown, returning it to the queue", "article_id", task.ArticleID)
		q.settle(ctx, raw, func(pipe redis.Pipeliner, sctx context.Context) {
			pipe.RPush(sctx, q.keys.Pending, raw)
		})
		return
	}

	delay, again := q.policy.NextAttempt(task, err)
	next := dispatch.Redelivery(task, err)
	payload, encErr := json.Marshal(next)
	if encErr != nil {
		q.warn("encode retry", "article_id", task.ArticleID, "error", encErr)
		return
	}

	if again {
		due := float64(q.now().Add(delay).UnixMilli())
		q.settle(ctx, raw, func(pipe redis.Pipeliner, sctx context.Context) {
			pipe.ZAdd(sctx, q.keys.Delayed, redis.Z{Score: due, Member: payload})
		})
		return
	}

	q.warn("task dead-lettered", "article_id", task.ArticleID, "attempt", task.Attempt, "error", err)
	q.settle(ctx, raw, func(pipe redis.Pipeliner, sctx context.Context) {
		pipe.LPush(sctx, q.keys.Dead, payload)
	})
	if q.deadLetter != nil {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
		q.deadLetter(dctx, task, err)
		cancel()
	}
}

// settle removes raw from the processing list, in the same transaction as the writes queued by then.
func (q *RedisDispatcher) settle(ctx context.Context, raw string, then func(redis.Pipeliner, context.Context)) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	_, err := q.client.TxPipelined(sctx, func(pipe redis.Pipeliner) error {
		if then != nil {
			then(pipe, sctx)
		}
		pipe.LRem(sctx, q.keys.Processing, 1, raw)
		return nil
	})
	if err != nil {
		q.warn("record task outcome", "error", err)
	}
}

func (q *RedisDispatcher) debug(msg string, args ...any) {
	if q.logger != nil {
		q.logger.Debug(msg, args...)
	}
}

func (q *RedisDispatcher) warn(msg string, args ...any) {
	if q.logger != nil {
		q.logger.Warn(msg, args...)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
