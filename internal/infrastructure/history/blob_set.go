package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/ports"
)

// BlobSet stores history as a JSON array object, oldest first.
type BlobSet struct {
	store    ports.BlobStore
	key      string
	capacity int

	mu sync.Mutex
}

var _ ports.HistorySet = (*BlobSet)(nil)

// NewBlobSet binds the set to the object at key.
func NewBlobSet(store ports.BlobStore, key string, capacity int) *BlobSet {
	if key == "" {
		key = "history.json"
	}
	return &BlobSet{store: store, key: key, capacity: normalizeCap(capacity)}
}

// Unseen returns the ids not present in the stored array.
func (s *BlobSet) Unseen(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		known[e] = struct{}{}
	}
	return unseen(ids, func(id string) bool {
		_, ok := known[id]
		return ok
	}), nil
}

// Remember appends ids and keeps only the newest capacity entries.
func (s *BlobSet) Remember(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		known[e] = struct{}{}
	}
	fresh := unseen(ids, func(id string) bool {
		_, ok := known[id]
		return ok
	})
	if len(fresh) == 0 {
		return nil
	}

	entries = append(entries, fresh...)
	if over := len(entries) - s.capacity; over > 0 {
		entries = entries[over:]
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if _, err := s.store.Put(ctx, s.key, payload, "application/json"); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func (s *BlobSet) load(ctx context.Context) ([]string, error) {
	raw, err := s.store.Get(ctx, s.key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var entries []string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}
