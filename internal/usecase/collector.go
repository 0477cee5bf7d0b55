package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/logging"
	"NewsCaster/internal/ports"
	"NewsCaster/internal/retry"
)

const (
	submittedSource     = "html"
	submittedDescRunes  = 300
	defaultRequeueLimit = 100
)

// CollectorDeps wires the driven adapters used by an ingestion pass.
type CollectorDeps struct {
	Source     ports.ArticleSource
	Store      ports.ArticleStore
	History    ports.HistorySet
	Enricher   ports.Enricher
	Events     ports.EventPublisher
	Dispatcher ports.Dispatcher
	Backlog    ports.BacklogReader
	Extractor  ports.ContentExtractor
	Retry      retry.Policy
	// MaxNewPerRun caps how many unseen entries one pass persists; zero means no cap.
	MaxNewPerRun int
	HTMLBaseURL  string
	NewID        func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// Report summarizes one collection pass. Per-item diagnostics go to logs.
type Report struct {
	Sources    int
	Fetched    int
	Filtered   int
	Known      int
	Inserted   int
	Duplicates int
	Invalid    int
	Failed     int
	Deferred   int
	Errors     []string
}

// Processed counts the entries the pass looked at after source filtering.
func (r Report) Processed() int {
	return r.Inserted + r.Duplicates + r.Invalid + r.Failed
}

// Collector implements the ingestion workflow.
type Collector struct {
	source     ports.ArticleSource
	store      ports.ArticleStore
	history    ports.HistorySet
	enricher   ports.Enricher
	events     ports.EventPublisher
	dispatcher ports.Dispatcher
	backlog    ports.BacklogReader
	extractor  ports.ContentExtractor
	retry      retry.Policy
	maxNew     int
	htmlBase   string
	newID      func() string
	now        func() time.Time
	log        *slog.Logger
}

// NewCollector constructs the ingestion component.
func NewCollector(deps CollectorDeps) *Collector {
	c := &Collector{
		source:     deps.Source,
		store:      deps.Store,
		history:    deps.History,
		enricher:   deps.Enricher,
		events:     deps.Events,
		dispatcher: deps.Dispatcher,
		backlog:    deps.Backlog,
		extractor:  deps.Extractor,
		retry:      deps.Retry.Normalize(),
		maxNew:     deps.MaxNewPerRun,
		htmlBase:   strings.TrimRight(deps.HTMLBaseURL, "/"),
		newID:      deps.NewID,
		now:        deps.Now,
		log:        deps.Logger,
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = logging.Discard()
	}
	return c
}

// Collect runs one ingestion pass over every configured source.
// A failing source or article is logged and counted; it never aborts the pass.
func (c *Collector) Collect(ctx context.Context) (Report, error) {
	var report Report
	if c.source == nil || c.store == nil {
		return report, errors.New("collector is not configured")
	}

	results, err := c.source.Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch sources: %w", err)
	}

	var candidates []domain.Article
	seen := make(map[string]bool)
	for _, res := range results {
		report.Sources++
		report.Filtered += res.Filtered
		if res.Err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", res.Name, res.Err))
			c.log.Warn("source failed", "source", res.Name, "error", res.Err)
			continue
		}
		report.Fetched += len(res.Articles)
		for _, article := range res.Articles {
			if seen[article.Link] {
				report.Known++
				continue
			}
			seen[article.Link] = true
			candidates = append(candidates, article)
		}
	}

	candidates = c.dropKnown(ctx, candidates, &report)
	if c.maxNew > 0 && len(candidates) > c.maxNew {
		report.Deferred = len(candidates) - c.maxNew
		candidates = candidates[:c.maxNew]
	}

	var handled []string
	for _, article := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch _, err := c.persist(ctx, article); {
		case err == nil:
			report.Inserted++
			handled = append(handled, article.Link)
		case errors.Is(err, domain.ErrAlreadyExists):
			report.Duplicates++
			handled = append(handled, article.Link)
			c.log.Debug("article already stored", "link", article.Link)
		case errors.Is(err, domain.ErrInvalidArticle):
			report.Invalid++
			handled = append(handled, article.Link)
			c.log.Warn("article rejected", "link", article.Link, "error", err)
		default:
			report.Failed++
			c.log.Error("article not stored", "link", article.Link, "error", err)
		}
	}

	if c.history != nil && len(handled) > 0 {
		if err := c.history.Remember(ctx, handled); err != nil {
			c.log.Warn("history update failed", "error", err)
		}
	}

	c.log.Info("collection finished",
		"sources", report.Sources,
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
	)
	return report, nil
}

// SubmitHTML stores an article extracted from a raw HTML page and schedules its audio.
// A page that was already submitted reports domain.ErrAlreadyExists.
func (c *Collector) SubmitHTML(ctx context.Context, pageID, html string) (domain.Article, error) {
	pageID = strings.TrimSpace(pageID)
	if pageID == "" || strings.TrimSpace(html) == "" {
		return domain.Article{}, fmt.Errorf("%w: page id and html are required", domain.ErrInvalidArticle)
	}
	if c.extractor == nil {
		return domain.Article{}, errors.New("html extraction is not configured")
	}

	title, body, err := c.extractor.Extract(html)
	if err != nil {
		return domain.Article{}, fmt.Errorf("extract content: %w", err)
	}
	if strings.TrimSpace(body) == "" {
		return domain.Article{}, fmt.Errorf("%w: page %s has no readable text", domain.ErrInvalidArticle, pageID)
	}
	if title == "" {
		title = "Article " + pageID
	}

	now := c.now().UTC()
	article := domain.Article{
		Title:       title,
		Description: clipRunes(body, submittedDescRunes),
		FullText:    body,
		Link:        c.htmlBase + "/articles/" + url.PathEscape(pageID),
		PublishedAt: now,
		Category:    domain.DefaultCategory,
		Source:      submittedSource,
	}
	stored, err := c.persist(ctx, article)
	if err != nil {
		return stored, err
	}
	c.log.Info("html article stored", "article_id", stored.ID, "page_id", pageID)
	return stored, nil
}

// Requeue re-dispatches articles created since the given time that still have no audio.
// It recovers units of work whose notification or task was lost.
func (c *Collector) Requeue(ctx context.Context, since time.Time, limit int) (int, error) {
	if c.backlog == nil || c.dispatcher == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = defaultRequeueLimit
	}
	articles, err := c.backlog.ArticlesWithoutAudio(ctx, since, limit)
	if err != nil {
		return 0, fmt.Errorf("load backlog: %w", err)
	}

	var queued int
	for _, article := range articles {
		if err := c.dispatcher.Enqueue(ctx, domain.Task{ArticleID: article.ID}); err != nil {
			return queued, fmt.Errorf("requeue %s: %w", article.ID, err)
		}
		queued++
	}
	if queued > 0 {
		c.log.Info("backlog requeued", "count", queued)
	}
	return queued, nil
}

func (c *Collector) dropKnown(ctx context.Context, candidates []domain.Article, report *Report) []domain.Article {
	if c.history == nil || len(candidates) == 0 {
		return candidates
	}
	links := make([]string, len(candidates))
	for i, a := range candidates {
		links[i] = a.Link
	}
	unseen, err := c.history.Unseen(ctx, links)
	if err != nil {
		c.log.Warn("history lookup failed, relying on the store", "error", err)
		return candidates
	}

	keep := make(map[string]bool, len(unseen))
	for _, link := range unseen {
		keep[link] = true
	}
	filtered := candidates[:0:0]
	for _, a := range candidates {
		if keep[a.Link] {
			filtered = append(filtered, a)
		}
	}
	report.Known += len(candidates) - len(filtered)
	return filtered
}

// persist enriches, inserts and schedules one article. The store constraint decides duplicates.
func (c *Collector) persist(ctx context.Context, article domain.Article) (domain.Article, error) {
	article.ID = c.newID()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = c.now().UTC()
	}
	if err := article.Validate(); err != nil {
		return article, err
	}

	article = c.enrich(ctx, article)

	if err := c.store.InsertArticle(ctx, article); err != nil {
		return article, err
	}

	if c.events != nil {
		if err := c.events.PublishArticleReady(ctx, domain.NewArticleReady(article)); err != nil {
			c.log.Warn("article-ready notification failed", "article_id", article.ID, "error", err)
		}
	}
	if c.dispatcher != nil {
		if err := c.dispatcher.Enqueue(ctx, domain.Task{ArticleID: article.ID}); err != nil {
			// The backlog sweep picks the article up later.
			c.log.Warn("audio task not scheduled", "article_id", article.ID, "error", err)
		}
	}
	return article, nil
}

func (c *Collector) enrich(ctx context.Context, article domain.Article) domain.Article {
	if c.enricher == nil {
		return article
	}
	var enriched domain.Article
	err := retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) error {
		var err error
		enriched, err = c.enricher.Enrich(ctx, article)
		return err
	})
	if err != nil {
		c.log.Warn("enrichment failed, keeping original text", "link", article.Link, "error", err)
		return article
	}
	enriched.ID = article.ID
	enriched.Link = article.Link
	enriched.CreatedAt = article.CreatedAt
	if enriched.Title == "" {
		enriched.Title = article.Title
	}
	return enriched
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
