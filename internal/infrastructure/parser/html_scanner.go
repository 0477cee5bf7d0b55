package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/scanner"
)

// HTMLScanner extracts articles from a listing page using CSS selectors from source options:
// item, title, link, description, date and dateLayout.
type HTMLScanner struct {
	client *http.Client
}

var _ scanner.Scanner = (*HTMLScanner)(nil)

// NewHTMLScanner wires an HTTP client; nil uses a 20s timeout client.
func NewHTMLScanner(client *http.Client) *HTMLScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTMLScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (s *HTMLScanner) Name() string {
	return "html"
}

// Scan downloads the listing page and maps each item block to an article.
func (s *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	base, err := url.Parse(req.URL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("source %s: invalid url %q", req.SourceName, req.URL)
	}

	doc, err := s.fetch(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	fetchedAt := req.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	var (
		itemSel   = req.Option("item", "article")
		titleSel  = req.Option("title", "h2, h3")
		linkSel   = req.Option("link", "a[href]")
		descSel   = req.Option("description", "p")
		dateSel   = req.Option("date", "time")
		dateShape = req.Option("dateLayout", time.RFC3339)
		category  = req.Category
	)
	if category == "" {
		category = domain.DefaultCategory
	}

	var articles []domain.Article
	doc.Find(itemSel).Each(func(_ int, item *goquery.Selection) {
		title := collapseSpaces(item.Find(titleSel).First().Text())
		href, _ := item.Find(linkSel).First().Attr("href")
		link := resolveLink(base, href)
		if title == "" || link == "" {
			return
		}
		articles = append(articles, domain.Article{
			Title:       title,
			Description: collapseSpaces(item.Find(descSel).First().Text()),
			Link:        link,
			PublishedAt: parseItemDate(item.Find(dateSel).First(), dateShape, fetchedAt),
			Category:    category,
			Source:      req.SourceName,
		})
	})
	return articles, nil
}

func (s *HTMLScanner) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func parseItemDate(sel *goquery.Selection, layout string, fallback time.Time) time.Time {
	raw, ok := sel.Attr("datetime")
	if !ok {
		raw = sel.Text()
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback.UTC()
	}
	parsed, err := time.Parse(layout, raw)
	if err != nil {
		return fallback.UTC()
	}
	return parsed.UTC()
}
