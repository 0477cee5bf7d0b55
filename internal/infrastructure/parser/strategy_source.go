package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsCaster/internal/config"
	"NewsCaster/internal/domain"
	"NewsCaster/internal/ports"
	"NewsCaster/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
type StrategySource struct {
	registry    *scanner.Registry
	sources     []config.SourceConfig
	concurrency int
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, cfg config.IngestConfig, log *slog.Logger) *StrategySource {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &StrategySource{
		registry:    reg,
		sources:     sources,
		concurrency: concurrency,
		timeout:     cfg.FetchTimeout,
		now:         time.Now,
		logger:      log,
	}
}

// Fetch scans every configured source. A failing source is reported in its result
// and never prevents the others from being read.
func (s *StrategySource) Fetch(ctx context.Context) ([]ports.SourceResult, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch sources", "sources", len(s.sources))
	fetchedAt := s.now().UTC()
	results := make([]ports.SourceResult, len(s.sources))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, src := range s.sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = s.scanSource(ctx, src, fetchedAt)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (s *StrategySource) scanSource(ctx context.Context, src config.SourceConfig, fetchedAt time.Time) ports.SourceResult {
	result := ports.SourceResult{Name: src.Name}

	strategy, err := s.registry.Resolve(src.Scanner)
	if err != nil {
		result.Err = fmt.Errorf("source %s: %w", src.Name, err)
		return result
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	articles, err := strategy.Scan(ctx, scanner.Request{
		SourceName: src.Name,
		URL:        src.URL,
		Category:   src.Category,
		Options:    src.Options,
		FetchedAt:  fetchedAt,
	})
	if err != nil {
		result.Err = fmt.Errorf("scan source %s: %w", src.Name, err)
		return result
	}

	for i := range articles {
		if articles[i].Source == "" {
			articles[i].Source = src.Name
		}
	}
	result.Articles, result.Filtered = filterByKeywords(articles, src.Keywords)
	s.debug("source produced articles", "source", src.Name, "count", len(result.Articles), "filtered", result.Filtered)
	return result
}

// filterByKeywords keeps articles whose title contains any keyword, case-insensitively.
// An empty keyword list keeps everything.
func filterByKeywords(articles []domain.Article, keywords []string) ([]domain.Article, int) {
	var needles []string
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			needles = append(needles, k)
		}
	}
	if len(needles) == 0 {
		return articles, 0
	}

	kept := articles[:0:0]
	for _, a := range articles {
		title := strings.ToLower(a.Title)
		for _, n := range needles {
			if strings.Contains(title, n) {
				kept = append(kept, a)
				break
			}
		}
	}
	return kept, len(articles) - len(kept)
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
