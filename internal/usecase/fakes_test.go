package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/infrastructure/blob"
	"NewsCaster/internal/infrastructure/storage"
	"NewsCaster/internal/ports"
	"NewsCaster/internal/retry"
)

var fastRetry = retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

func newRepository(t *testing.T) *storage.Repository {
	t.Helper()

	ctx := context.Background()
	repo, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "usecase.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func newBlobStore(t *testing.T) *blob.FileStore {
	t.Helper()

	store, err := blob.NewFileStore(filepath.Join(t.TempDir(), "public"), "https://cdn.example/public")
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	return store
}

type staticSource struct {
	results []ports.SourceResult
}

func (s staticSource) Fetch(context.Context) ([]ports.SourceResult, error) {
	return s.results, nil
}

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []domain.Task
	err   error
}

func (d *recordingDispatcher) Enqueue(_ context.Context, task domain.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, task)
	return nil
}

func (d *recordingDispatcher) ids() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.tasks))
	for i, task := range d.tasks {
		out[i] = task.ArticleID
	}
	return out
}

type recordingEvents struct {
	mu       sync.Mutex
	articles []domain.ArticleReady
	audio    []domain.AudioReady
}

func (e *recordingEvents) PublishArticleReady(_ context.Context, msg domain.ArticleReady) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.articles = append(e.articles, msg)
	return nil
}

func (e *recordingEvents) PublishAudioReady(_ context.Context, msg domain.AudioReady) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audio = append(e.audio, msg)
	return nil
}

type countingSynth struct {
	mu      sync.Mutex
	calls   int
	failFor int
	err     error
	texts   []string
	delay   time.Duration
}

func (s *countingSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if call <= s.failFor {
		if s.err != nil {
			return nil, s.err
		}
		return nil, errors.New("quota exceeded")
	}
	return []byte("ID3-narration-" + text), nil
}

func (s *countingSynth) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fixedProber time.Duration

func (p fixedProber) Duration([]byte) (time.Duration, error) {
	return time.Duration(p), nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}
