package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/feed"
	"NewsCaster/internal/logging"
	"NewsCaster/internal/ports"
	"NewsCaster/internal/retry"
)

const (
	feedContentType  = "application/rss+xml; charset=utf-8"
	defaultObjectKey = "podcast_feed.xml"
)

// AssemblerDeps wires the feed assembler.
type AssemblerDeps struct {
	Episodes ports.EpisodeReader
	Blobs    ports.BlobStore
	Notifier ports.Notifier
	Podcast  domain.Podcast
	// Window limits episodes to those published within it; zero selects every episode.
	Window    time.Duration
	Category  string
	Limit     int
	ObjectKey string
	Retry     retry.Policy
	Now       func() time.Time
	Logger    *slog.Logger
}

// FeedReport describes a published feed.
type FeedReport struct {
	Episodes int
	URL      string
	Bytes    int
}

// Assembler renders eligible episodes into the podcast feed and overwrites the published copy.
type Assembler struct {
	episodes  ports.EpisodeReader
	blobs     ports.BlobStore
	notifier  ports.Notifier
	podcast   domain.Podcast
	window    time.Duration
	category  string
	limit     int
	objectKey string
	retry     retry.Policy
	now       func() time.Time
	log       *slog.Logger

	mu sync.Mutex
}

// NewAssembler constructs the feed assembler.
func NewAssembler(deps AssemblerDeps) *Assembler {
	a := &Assembler{
		episodes:  deps.Episodes,
		blobs:     deps.Blobs,
		notifier:  deps.Notifier,
		podcast:   deps.Podcast,
		window:    deps.Window,
		category:  deps.Category,
		limit:     deps.Limit,
		objectKey: deps.ObjectKey,
		retry:     deps.Retry.Normalize(),
		now:       deps.Now,
		log:       deps.Logger,
	}
	if a.objectKey == "" {
		a.objectKey = defaultObjectKey
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.log == nil {
		a.log = logging.Discard()
	}
	return a
}

// Assemble publishes the feed. With no eligible episodes it returns domain.ErrNoEpisodes
// and leaves the published document untouched.
func (a *Assembler) Assemble(ctx context.Context) (FeedReport, error) {
	if a.episodes == nil || a.blobs == nil {
		return FeedReport{}, errors.New("assembler is not configured")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now().UTC()
	episodes, err := a.Eligible(ctx, now)
	if err != nil {
		return FeedReport{}, err
	}
	if len(episodes) == 0 {
		a.log.Warn("no eligible episodes, keeping the published feed", "window", a.window.String())
		return FeedReport{}, domain.ErrNoEpisodes
	}

	doc, err := feed.Render(a.podcast, episodes, now)
	if err != nil {
		return FeedReport{}, fmt.Errorf("render feed: %w", err)
	}

	var feedURL string
	err = retry.Do(ctx, a.retry, func(ctx context.Context, attempt int) error {
		var err error
		feedURL, err = a.blobs.Put(ctx, a.objectKey, doc, feedContentType)
		return err
	})
	if err != nil {
		return FeedReport{}, fmt.Errorf("publish feed: %w", err)
	}

	report := FeedReport{Episodes: len(episodes), URL: feedURL, Bytes: len(doc)}
	a.log.Info("feed published", "episodes", report.Episodes, "url", report.URL)

	if a.notifier != nil {
		msg := fmt.Sprintf("Feed updated: %d episodes\n%s", report.Episodes, report.URL)
		if err := a.notifier.Notify(ctx, msg); err != nil {
			a.log.Warn("feed notification failed", "error", err)
		}
	}
	return report, nil
}

// Eligible returns the episodes the next feed would contain.
func (a *Assembler) Eligible(ctx context.Context, now time.Time) ([]domain.Episode, error) {
	query := domain.EpisodeQuery{Category: a.category, Limit: a.limit}
	if a.window > 0 {
		query.Since = now.Add(-a.window)
	}
	episodes, err := a.episodes.EligibleEpisodes(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load episodes: %w", err)
	}
	return episodes, nil
}

// Trigger coalesces bursts of audio-ready events into a single assembly run.
type Trigger struct {
	assembler *Assembler
	delay     time.Duration
	log       *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	ctx   context.Context
}

// NewTrigger returns a trigger that assembles delay after the last signal.
func NewTrigger(ctx context.Context, assembler *Assembler, delay time.Duration, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Trigger{assembler: assembler, delay: delay, log: logger, ctx: ctx}
}

// Signal schedules an assembly run, postponing one already pending.
func (t *Trigger) Signal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx.Err() != nil {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.delay, t.fire)
}

// OnAudioReady is the event-bus callback.
func (t *Trigger) OnAudioReady(msg domain.AudioReady) {
	t.log.Debug("audio ready", "article_id", msg.ArticleID)
	t.Signal()
}

func (t *Trigger) fire() {
	if t.ctx.Err() != nil {
		return
	}
	_, err := t.assembler.Assemble(t.ctx)
	switch {
	case errors.Is(err, domain.ErrNoEpisodes):
	case err != nil:
		t.log.Error("triggered assembly failed", "error", err)
	}
}
