package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/scanner"
)

const userAgent = "NewsCaster/1.0 (+https://github.com/newscaster)"

// RSSScanner reads RSS and Atom feeds.
type RSSScanner struct {
	client *http.Client
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires an HTTP client; nil uses a 20s timeout client.
func NewRSSScanner(client *http.Client) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &RSSScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return "rss"
}

// Scan returns one article per feed entry that has a title and a link.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("source %s: feed url is empty", req.SourceName)
	}

	fp := gofeed.NewParser()
	fp.Client = s.client
	fp.UserAgent = userAgent

	feed, err := fp.ParseURLWithContext(req.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", req.URL, err)
	}

	fetchedAt := req.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	articles := make([]domain.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		article := domain.Article{
			Title:       PlainText(item.Title),
			Description: PlainText(item.Description),
			FullText:    PlainText(item.Content),
			Link:        strings.TrimSpace(item.Link),
			PublishedAt: entryTime(item, fetchedAt),
			Category:    entryCategory(item, req.Category),
			Source:      req.SourceName,
		}
		if article.Title == "" || article.Link == "" {
			continue
		}
		articles = append(articles, article)
	}
	return articles, nil
}

func entryTime(item *gofeed.Item, fallback time.Time) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	default:
		return fallback.UTC()
	}
}

func entryCategory(item *gofeed.Item, configured string) string {
	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	if configured != "" {
		return configured
	}
	return domain.DefaultCategory
}
