package history

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"NewsCaster/internal/ports"
)

// RedisSet stores history as a capped list, newest first.
type RedisSet struct {
	client   redis.UniversalClient
	key      string
	capacity int
}

var _ ports.HistorySet = (*RedisSet)(nil)

// NewRedisSet binds the set to key on client.
func NewRedisSet(client redis.UniversalClient, key string, capacity int) *RedisSet {
	return &RedisSet{client: client, key: key, capacity: normalizeCap(capacity)}
}

// Unseen returns the ids not present in the list.
func (s *RedisSet) Unseen(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	members, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	known := make(map[string]struct{}, len(members))
	for _, m := range members {
		known[m] = struct{}{}
	}
	return unseen(ids, func(id string) bool {
		_, ok := known[id]
		return ok
	}), nil
}

// Remember pushes ids and trims the list so the oldest entries fall off.
func (s *RedisSet) Remember(ctx context.Context, ids []string) error {
	fresh := unseen(ids, func(string) bool { return false })
	if len(fresh) == 0 {
		return nil
	}
	values := make([]any, len(fresh))
	for i, id := range fresh {
		values[i] = id
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, values...)
	pipe.LTrim(ctx, s.key, 0, int64(s.capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
