package ports

import (
	"context"
	"time"

	"NewsCaster/internal/domain"
)

// ArticleSource pulls candidate articles from upstream feeds.
// Failures of individual feeds are reported per feed, not as a whole.
type ArticleSource interface {
	Fetch(ctx context.Context) ([]SourceResult, error)
}

// SourceResult holds the outcome of fetching one configured feed.
type SourceResult struct {
	Name     string
	Articles []domain.Article
	// Filtered counts entries dropped by the source keyword filter.
	Filtered int
	Err      error
}

// ArticleStore persists articles; the link column is unique.
type ArticleStore interface {
	// InsertArticle returns domain.ErrAlreadyExists when the link is already stored.
	InsertArticle(ctx context.Context, article domain.Article) error
	GetArticle(ctx context.Context, id string) (domain.Article, error)
	ExistingLinks(ctx context.Context, links []string) (map[string]bool, error)
}

// AudioStore persists one audio row per article; article_id is unique.
type AudioStore interface {
	// ClaimAudio returns domain.ErrAlreadyExists when the artifact is ready and
	// domain.ErrClaimHeld when another live claim owns the article.
	ClaimAudio(ctx context.Context, articleID, token string, ttl time.Duration, now time.Time) (domain.Claim, error)
	CompleteAudio(ctx context.Context, claim domain.Claim, result domain.AudioResult) (domain.AudioArtifact, error)
	ReleaseAudio(ctx context.Context, claim domain.Claim, reason string) error
	GetAudio(ctx context.Context, articleID string) (domain.AudioArtifact, error)
}

// BacklogReader lists articles that still lack a ready audio artifact.
type BacklogReader interface {
	ArticlesWithoutAudio(ctx context.Context, since time.Time, limit int) ([]domain.Article, error)
}

// ContentExtractor pulls the readable title and body out of an HTML page.
type ContentExtractor interface {
	Extract(html string) (title, body string, err error)
}

// EpisodeReader returns a consistent snapshot of publishable episodes.
type EpisodeReader interface {
	EligibleEpisodes(ctx context.Context, query domain.EpisodeQuery) ([]domain.Episode, error)
}

// HistorySet is the bounded best-effort cache of seen source identifiers.
type HistorySet interface {
	Unseen(ctx context.Context, ids []string) ([]string, error)
	Remember(ctx context.Context, ids []string) error
}

// Synthesizer turns narration text into raw audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ScriptWriter rewrites an article into a narration script.
type ScriptWriter interface {
	WriteScript(ctx context.Context, article domain.Article) (string, error)
}

// Enricher translates or summarizes an article before it is first persisted.
type Enricher interface {
	Enrich(ctx context.Context, article domain.Article) (domain.Article, error)
}

// Mixer overlays a background track under the narration.
type Mixer interface {
	Mix(ctx context.Context, narration []byte) ([]byte, error)
}

// DurationProber measures playback duration of encoded audio.
type DurationProber interface {
	Duration(data []byte) (time.Duration, error)
}

// BlobStore uploads objects to durable storage and returns their public URL.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Dispatcher turns a unit of work into a durable, retryable task.
type Dispatcher interface {
	Enqueue(ctx context.Context, task domain.Task) error
}

// EventPublisher emits pipeline notifications. Notifications are hints, not commitments.
type EventPublisher interface {
	PublishArticleReady(ctx context.Context, msg domain.ArticleReady) error
	PublishAudioReady(ctx context.Context, msg domain.AudioReady) error
}

// Notifier streams operator alerts to Telegram or other channels.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Add(expr string, job func(time.Time)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
