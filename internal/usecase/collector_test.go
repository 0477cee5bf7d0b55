package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/infrastructure/history"
	"NewsCaster/internal/infrastructure/parser"
	"NewsCaster/internal/ports"
)

func entry(link, title string) domain.Article {
	return domain.Article{
		Title:       title,
		Description: "Leírás: " + title,
		Link:        link,
		PublishedAt: time.Date(2025, 11, 8, 9, 0, 0, 0, time.UTC),
		Category:    "Gazdaság",
		Source:      "test",
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("article-%02d", n)
	}
}

func TestCollectDedupesAcrossSourcesAndPasses(t *testing.T) {
	t.Parallel()

	repo := newRepository(t)
	dispatcher := &recordingDispatcher{}
	events := &recordingEvents{}
	source := staticSource{results: []ports.SourceResult{
		{Name: "portfolio", Articles: []domain.Article{
			entry("https://news.example/forint", "Gyengül a forint"),
			entry("https://news.example/bux", "Emelkedik a BUX"),
		}},
		{Name: "index", Articles: []domain.Article{
			entry("https://news.example/forint", "Gyengül a forint"),
		}},
		{Name: "broken", Err: errors.New("status 502")},
	}}

	collector := NewCollector(CollectorDeps{
		Source:     source,
		Store:      repo,
		Events:     events,
		Dispatcher: dispatcher,
		Retry:      fastRetry,
		NewID:      sequentialIDs(),
	})
	ctx := context.Background()

	first, err := collector.Collect(ctx)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if first.Sources != 3 || first.Fetched != 3 || first.Inserted != 2 || first.Known != 1 {
		t.Fatalf("unexpected first report: %+v", first)
	}
	if len(first.Errors) != 1 || !strings.HasPrefix(first.Errors[0], "broken:") {
		t.Fatalf("source failure not isolated: %v", first.Errors)
	}

	second, err := collector.Collect(ctx)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.Inserted != 0 || second.Duplicates != 2 || second.Failed != 0 {
		t.Fatalf("expected duplicates on the second pass, got %+v", second)
	}

	if got := dispatcher.ids(); len(got) != 2 || got[0] != "article-01" || got[1] != "article-02" {
		t.Fatalf("unexpected dispatched tasks: %v", got)
	}
	if len(events.articles) != 2 || events.articles[0].PubDate != "2025-11-08T09:00:00Z" {
		t.Fatalf("unexpected article-ready messages: %+v", events.articles)
	}

	backlog, err := repo.ArticlesWithoutAudio(ctx, time.Time{}, 0)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if len(backlog) != 2 {
		t.Fatalf("expected 2 stored articles, got %d", len(backlog))
	}
}

func TestCollectUsesHistoryAndCapsNewItems(t *testing.T) {
	t.Parallel()

	repo := newRepository(t)
	seen := history.NewBlobSet(newBlobStore(t), "history.json", 10)
	ctx := context.Background()
	if err := seen.Remember(ctx, []string{"https://news.example/old"}); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	source := staticSource{results: []ports.SourceResult{{Name: "feed", Filtered: 4, Articles: []domain.Article{
		entry("https://news.example/old", "Régi hír"),
		entry("https://news.example/a", "Első"),
		entry("https://news.example/b", "Második"),
		entry("https://news.example/c", "Harmadik"),
	}}}}

	collector := NewCollector(CollectorDeps{
		Source:       source,
		Store:        repo,
		History:      seen,
		MaxNewPerRun: 2,
		Retry:        fastRetry,
	})

	report, err := collector.Collect(ctx)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if report.Known != 1 || report.Inserted != 2 || report.Deferred != 1 || report.Filtered != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}

	unseen, err := seen.Unseen(ctx, []string{"https://news.example/a", "https://news.example/c"})
	if err != nil {
		t.Fatalf("unseen: %v", err)
	}
	if len(unseen) != 1 || unseen[0] != "https://news.example/c" {
		t.Fatalf("deferred entry must stay unseen, got %v", unseen)
	}

	next, err := collector.Collect(ctx)
	if err != nil {
		t.Fatalf("second collect: %v", err)
	}
	if next.Inserted != 1 || next.Known != 3 {
		t.Fatalf("deferred entry should be picked up next pass: %+v", next)
	}
}

func TestCollectRejectsInvalidAndFallsBackOnEnrichmentFailure(t *testing.T) {
	t.Parallel()

	repo := newRepository(t)
	source := staticSource{results: []ports.SourceResult{{Name: "feed", Articles: []domain.Article{
		entry("https://news.example/ok", "Kamatdöntés"),
		entry("https://news.example/untitled", ""),
	}}}}
	collector := NewCollector(CollectorDeps{
		Source:   source,
		Store:    repo,
		Enricher: failingEnricher{},
		Retry:    fastRetry,
	})

	report, err := collector.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if report.Inserted != 1 || report.Invalid != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

type failingEnricher struct{}

func (failingEnricher) Enrich(context.Context, domain.Article) (domain.Article, error) {
	return domain.Article{}, errors.New("translator unavailable")
}

func TestSubmitHTMLStoresOnce(t *testing.T) {
	t.Parallel()

	repo := newRepository(t)
	dispatcher := &recordingDispatcher{}
	collector := NewCollector(CollectorDeps{
		Store:       repo,
		Dispatcher:  dispatcher,
		Extractor:   parser.HTMLExtractor{},
		HTMLBaseURL: "https://site.example/",
		Retry:       fastRetry,
	})
	ctx := context.Background()
	page := `<html><body><nav>Menü</nav><h1>Inflációs adat</h1><p>Az infláció 4,3 százalék lett.</p></body></html>`

	article, err := collector.SubmitHTML(ctx, "page 42", page)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if article.Link != "https://site.example/articles/page%2042" {
		t.Fatalf("unexpected link: %s", article.Link)
	}
	if article.Title != "Inflációs adat" || strings.Contains(article.FullText, "Menü") {
		t.Fatalf("unexpected extraction: %+v", article)
	}

	if _, err := collector.SubmitHTML(ctx, "page 42", page); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on resubmission, got %v", err)
	}
	if _, err := collector.SubmitHTML(ctx, "", page); !errors.Is(err, domain.ErrInvalidArticle) {
		t.Fatalf("expected ErrInvalidArticle, got %v", err)
	}
	if got := dispatcher.ids(); len(got) != 1 || got[0] != article.ID {
		t.Fatalf("unexpected tasks: %v", got)
	}
}

func TestRequeueDispatchesArticlesWithoutAudio(t *testing.T) {
	t.Parallel()

	repo := newRepository(t)
	ctx := context.Background()
	for i, link := range []string{"https://news.example/1", "https://news.example/2"} {
		a := entry(link, fmt.Sprintf("Hír %d", i))
		a.ID = fmt.Sprintf("a%d", i)
		if err := repo.InsertArticle(ctx, a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	dispatcher := &recordingDispatcher{}
	collector := NewCollector(CollectorDeps{Store: repo, Backlog: repo, Dispatcher: dispatcher})

	n, err := collector.Requeue(ctx, time.Now().Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if n != 2 || len(dispatcher.ids()) != 2 {
		t.Fatalf("expected 2 requeued tasks, got %d", n)
	}
}
