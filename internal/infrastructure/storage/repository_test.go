package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"NewsCaster/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	ctx := context.Background()
	repo, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "newscaster.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func sampleArticle(id, link string, published time.Time) domain.Article {
	return domain.Article{
		ID:          id,
		Title:       "Title " + id,
		Description: "Description " + id,
		Link:        link,
		PublishedAt: published,
		Category:    "Markets",
		Source:      "test",
	}
}

func countRows(t *testing.T, repo *Repository, table string) int {
	t.Helper()
	var n int
	if err := repo.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestInsertArticleDuplicateLink(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.InsertArticle(ctx, sampleArticle("a1", "https://news.example/1", now)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := repo.InsertArticle(ctx, sampleArticle("a2", "https://news.example/1", now))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if n := countRows(t, repo, "articles"); n != 1 {
		t.Fatalf("expected 1 article row, got %d", n)
	}
}

func TestInsertArticleRejectsMissingFields(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	err := repo.InsertArticle(context.Background(), domain.Article{ID: "x", Link: "https://news.example/x"})
	if !errors.Is(err, domain.ErrInvalidArticle) {
		t.Fatalf("expected ErrInvalidArticle, got %v", err)
	}
	if n := countRows(t, repo, "articles"); n != 0 {
		t.Fatalf("partial record persisted")
	}
}

func TestGetArticleRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	published := time.Date(2025, 11, 8, 9, 30, 0, 0, time.UTC)
	in := sampleArticle("a1", "https://news.example/1", published)
	in.Category = ""

	if err := repo.InsertArticle(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := repo.GetArticle(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.PublishedAt.Equal(published) {
		t.Fatalf("unexpected pub date: %v", got.PublishedAt)
	}
	if got.Category != domain.DefaultCategory {
		t.Fatalf("unexpected category: %q", got.Category)
	}

	if _, err := repo.GetArticle(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimAudioConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	if err := repo.InsertArticle(ctx, sampleArticle("a1", "https://news.example/1", time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}

	const workers = 12
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		held   int
		others []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.ClaimAudio(ctx, "a1", fmt.Sprintf("token-%d", i), time.Hour, time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrClaimHeld):
				held++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if wins != 1 || held != workers-1 {
		t.Fatalf("expected 1 winner and %d held, got %d/%d", workers-1, wins, held)
	}
	if n := countRows(t, repo, "audio_files"); n != 1 {
		t.Fatalf("expected 1 audio row, got %d", n)
	}
}

func TestClaimLifecycle(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := repo.InsertArticle(ctx, sampleArticle("a1", "https://news.example/1", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	first, err := repo.ClaimAudio(ctx, "a1", "t1", time.Hour, now)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := repo.ReleaseAudio(ctx, first, "tts quota"); err != nil {
		t.Fatalf("release: %v", err)
	}

	second, err := repo.ClaimAudio(ctx, "a1", "t2", time.Hour, now)
	if err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	if second.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", second.Attempt)
	}

	if _, err := repo.CompleteAudio(ctx, first, domain.AudioResult{URL: "stale"}); !errors.Is(err, domain.ErrClaimLost) {
		t.Fatalf("stale token completed: %v", err)
	}

	artifact, err := repo.CompleteAudio(ctx, second, domain.AudioResult{
		URL:             "https://cdn.example/audio/a1.mp3",
		Length:          4096,
		DurationMinutes: 1.23456,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if artifact.Status != domain.ClaimReady || artifact.DurationMinutes != 1.23 || artifact.Length != 4096 {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}

	if _, err := repo.ClaimAudio(ctx, "a1", "t3", time.Hour, now); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists after completion, got %v", err)
	}
}

func TestReleaseAudioClipsLongReasons(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := repo.InsertArticle(ctx, sampleArticle("a1", "https://news.example/1", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	claim, err := repo.ClaimAudio(ctx, "a1", "t1", time.Hour, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	reason := "x" + strings.Repeat("árfolyam ", 200)
	if err := repo.ReleaseAudio(ctx, claim, reason); err != nil {
		t.Fatalf("release: %v", err)
	}
	row, err := repo.GetAudio(ctx, "a1")
	if err != nil {
		t.Fatalf("get audio: %v", err)
	}
	if row.Status != domain.ClaimFailed || len(row.LastError) > maxReasonBytes || !utf8.ValidString(row.LastError) {
		t.Fatalf("unexpected stored reason (%d bytes): %+v", len(row.LastError), row.Status)
	}
}

func TestClaimTakesOverStalePending(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	start := time.Now().UTC()
	if err := repo.InsertArticle(ctx, sampleArticle("a1", "https://news.example/1", start)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := repo.ClaimAudio(ctx, "a1", "crashed", 10*time.Minute, start); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := repo.ClaimAudio(ctx, "a1", "early", 10*time.Minute, start.Add(time.Minute)); !errors.Is(err, domain.ErrClaimHeld) {
		t.Fatalf("expected live claim to be held, got %v", err)
	}
	claim, err := repo.ClaimAudio(ctx, "a1", "late", 10*time.Minute, start.Add(11*time.Minute))
	if err != nil {
		t.Fatalf("stale takeover: %v", err)
	}
	if claim.Token != "late" {
		t.Fatalf("unexpected token: %s", claim.Token)
	}
}

func TestEligibleEpisodesWindow(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC)

	offsets := map[string]time.Duration{"old": 30 * time.Hour, "mid": 10 * time.Hour, "new": time.Hour}
	for id, off := range offsets {
		if err := repo.InsertArticle(ctx, sampleArticle(id, "https://news.example/"+id, now.Add(-off))); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
		claim, err := repo.ClaimAudio(ctx, id, "tok-"+id, time.Hour, now)
		if err != nil {
			t.Fatalf("claim %s: %v", id, err)
		}
		if _, err := repo.CompleteAudio(ctx, claim, domain.AudioResult{URL: "https://cdn.example/" + id + ".mp3", Length: 10}); err != nil {
			t.Fatalf("complete %s: %v", id, err)
		}
	}
	if err := repo.InsertArticle(ctx, sampleArticle("noaudio", "https://news.example/noaudio", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	episodes, err := repo.EligibleEpisodes(ctx, domain.EpisodeQuery{Since: now.Add(-24 * time.Hour)})
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(episodes))
	}
	if episodes[0].Article.ID != "new" || episodes[1].Article.ID != "mid" {
		t.Fatalf("unexpected order: %s, %s", episodes[0].Article.ID, episodes[1].Article.ID)
	}
	if episodes[0].Audio.URL != "https://cdn.example/new.mp3" {
		t.Fatalf("unexpected audio: %+v", episodes[0].Audio)
	}

	all, err := repo.EligibleEpisodes(ctx, domain.EpisodeQuery{})
	if err != nil {
		t.Fatalf("eligible all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 episodes without window, got %d", len(all))
	}

	backlog, err := repo.ArticlesWithoutAudio(ctx, time.Time{}, 0)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if len(backlog) != 1 || backlog[0].ID != "noaudio" {
		t.Fatalf("unexpected backlog: %+v", backlog)
	}
}

func TestExistingLinks(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	if err := repo.InsertArticle(ctx, sampleArticle("a1", "https://news.example/1", time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}

	known, err := repo.ExistingLinks(ctx, []string{"https://news.example/1", "https://news.example/2"})
	if err != nil {
		t.Fatalf("existing links: %v", err)
	}
	if !known["https://news.example/1"] || known["https://news.example/2"] {
		t.Fatalf("unexpected result: %v", known)
	}
}
