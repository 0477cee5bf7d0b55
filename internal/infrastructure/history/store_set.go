package history

import (
	"context"

	"NewsCaster/internal/ports"
)

// LinkLookup reports which links the article store already holds.
type LinkLookup interface {
	ExistingLinks(ctx context.Context, links []string) (map[string]bool, error)
}

// StoreSet answers history queries from the article store itself. Remember is a no-op
// because inserted articles are already recorded there.
type StoreSet struct {
	lookup LinkLookup
}

var _ ports.HistorySet = (*StoreSet)(nil)

// NewStoreSet wraps the article store.
func NewStoreSet(lookup LinkLookup) *StoreSet {
	return &StoreSet{lookup: lookup}
}

func (s *StoreSet) Unseen(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	known, err := s.lookup.ExistingLinks(ctx, ids)
	if err != nil {
		return nil, err
	}
	return unseen(ids, func(id string) bool { return known[id] }), nil
}

func (s *StoreSet) Remember(context.Context, []string) error { return nil }

// Nop disables history; every id is unseen.
type Nop struct{}

var _ ports.HistorySet = Nop{}

func (Nop) Unseen(_ context.Context, ids []string) ([]string, error) {
	return unseen(ids, func(string) bool { return false }), nil
}

func (Nop) Remember(context.Context, []string) error { return nil }
