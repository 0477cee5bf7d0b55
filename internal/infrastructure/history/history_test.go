package history

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"NewsCaster/internal/infrastructure/blob"
	"NewsCaster/internal/ports"
)

func newRedisSet(t *testing.T, capacity int) (*RedisSet, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSet(client, "newscaster:history", capacity), mr
}

func newBlobSet(t *testing.T, capacity int) *BlobSet {
	t.Helper()
	store, err := blob.NewFileStore(t.TempDir(), "http://localhost/public")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return NewBlobSet(store, "history.json", capacity)
}

func TestSetsKeepOrderAndDropRepeats(t *testing.T) {
	t.Parallel()

	redisSet, _ := newRedisSet(t, 10)
	sets := map[string]ports.HistorySet{
		"redis": redisSet,
		"blob":  newBlobSet(t, 10),
	}
	for name, set := range sets {
		set := set
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := set.Remember(ctx, []string{"b"}); err != nil {
				t.Fatalf("remember: %v", err)
			}
			got, err := set.Unseen(ctx, []string{"c", "a", "b", "c", " ", "a"})
			if err != nil {
				t.Fatalf("unseen: %v", err)
			}
			if want := []string{"c", "a"}; !reflect.DeepEqual(got, want) {
				t.Fatalf("got %v, want %v", got, want)
			}
		})
	}
}

func TestSetsEvictOldestFirst(t *testing.T) {
	t.Parallel()

	redisSet, _ := newRedisSet(t, 3)
	sets := map[string]ports.HistorySet{
		"redis": redisSet,
		"blob":  newBlobSet(t, 3),
	}
	for name, set := range sets {
		set := set
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 1; i <= 5; i++ {
				if err := set.Remember(ctx, []string{fmt.Sprintf("id-%d", i)}); err != nil {
					t.Fatalf("remember: %v", err)
				}
			}
			got, err := set.Unseen(ctx, []string{"id-1", "id-2", "id-3", "id-4", "id-5"})
			if err != nil {
				t.Fatalf("unseen: %v", err)
			}
			if want := []string{"id-1", "id-2"}; !reflect.DeepEqual(got, want) {
				t.Fatalf("got %v, want %v", got, want)
			}
		})
	}
}

func TestRedisSetReportsBackendFailure(t *testing.T) {
	t.Parallel()

	set, mr := newRedisSet(t, 10)
	mr.Close()
	if _, err := set.Unseen(context.Background(), []string{"a"}); err == nil {
		t.Fatalf("expected error when redis is unavailable")
	}
}

type fakeLookup map[string]bool

func (f fakeLookup) ExistingLinks(_ context.Context, links []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, l := range links {
		if f[l] {
			out[l] = true
		}
	}
	return out, nil
}

func TestStoreSetUsesArticleStore(t *testing.T) {
	t.Parallel()

	set := NewStoreSet(fakeLookup{"https://news.example/1": true})
	got, err := set.Unseen(context.Background(), []string{"https://news.example/1", "https://news.example/2"})
	if err != nil {
		t.Fatalf("unseen: %v", err)
	}
	if want := []string{"https://news.example/2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
