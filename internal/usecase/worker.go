package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/logging"
	"NewsCaster/internal/ports"
	"NewsCaster/internal/retry"
	"NewsCaster/pkg/numwords"
	"NewsCaster/pkg/slug"
)

// Outcome classifies a successful Generate call.
type Outcome string

const (
	OutcomeGenerated     Outcome = "generated"
	OutcomeAlreadyExists Outcome = "already_exists"
	OutcomeInProgress    Outcome = "in_progress"
)

const (
	defaultClaimTTL = 10 * time.Minute
	releaseTimeout  = 10 * time.Second
	slugMaxLen      = 60
	shortIDLen      = 8
)

// Result reports what a Generate call did for one article.
type Result struct {
	ArticleID string
	Outcome   Outcome
	Artifact  domain.AudioArtifact
}

// WorkerDeps wires the adapters used by audio generation.
type WorkerDeps struct {
	Articles ports.ArticleStore
	Audio    ports.AudioStore
	Synth    ports.Synthesizer
	Script   ports.ScriptWriter
	Mixer    ports.Mixer
	Prober   ports.DurationProber
	Blobs    ports.BlobStore
	Events   ports.EventPublisher
	Retry    retry.Policy
	// ClaimTTL bounds how long a pending claim blocks other workers.
	ClaimTTL time.Duration
	// SpellNumbers spells digits out in Hungarian before synthesis.
	SpellNumbers bool
	NewToken     func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// Worker produces exactly one audio artifact per article.
type Worker struct {
	articles ports.ArticleStore
	audio    ports.AudioStore
	synth    ports.Synthesizer
	script   ports.ScriptWriter
	mixer    ports.Mixer
	prober   ports.DurationProber
	blobs    ports.BlobStore
	events   ports.EventPublisher
	retry    retry.Policy
	claimTTL time.Duration
	spell    bool
	newToken func() string
	now      func() time.Time
	log      *slog.Logger
}

// NewWorker constructs the synthesis worker.
func NewWorker(deps WorkerDeps) *Worker {
	w := &Worker{
		articles: deps.Articles,
		audio:    deps.Audio,
		synth:    deps.Synth,
		script:   deps.Script,
		mixer:    deps.Mixer,
		prober:   deps.Prober,
		blobs:    deps.Blobs,
		events:   deps.Events,
		retry:    deps.Retry.Normalize(),
		claimTTL: deps.ClaimTTL,
		spell:    deps.SpellNumbers,
		newToken: deps.NewToken,
		now:      deps.Now,
		log:      deps.Logger,
	}
	if w.claimTTL <= 0 {
		w.claimTTL = defaultClaimTTL
	}
	if w.newToken == nil {
		w.newToken = uuid.NewString
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.log == nil {
		w.log = logging.Discard()
	}
	return w
}

// Generate claims the article and, when the claim is won, synthesizes, stores and announces its audio.
// Losing the claim to a finished or running attempt is a success. Any failure after the claim
// releases it so a redelivered unit of work can try again.
func (w *Worker) Generate(ctx context.Context, articleID string) (Result, error) {
	result := Result{ArticleID: articleID}
	if strings.TrimSpace(articleID) == "" {
		return result, retry.Permanent(fmt.Errorf("%w: article id is required", domain.ErrInvalidArticle))
	}
	if w.articles == nil || w.audio == nil || w.synth == nil || w.blobs == nil {
		return result, errors.New("worker is not configured")
	}

	article, err := w.articles.GetArticle(ctx, articleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return result, retry.Permanent(err)
		}
		return result, fmt.Errorf("load article: %w", err)
	}

	claim, err := w.audio.ClaimAudio(ctx, articleID, w.newToken(), w.claimTTL, w.now())
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		result.Outcome = OutcomeAlreadyExists
		if artifact, getErr := w.audio.GetAudio(ctx, articleID); getErr == nil {
			result.Artifact = artifact
		}
		w.log.Debug("audio already exists", "article_id", articleID)
		return result, nil
	case errors.Is(err, domain.ErrClaimHeld):
		result.Outcome = OutcomeInProgress
		w.log.Debug("audio claimed by another worker", "article_id", articleID)
		return result, nil
	case err != nil:
		return result, fmt.Errorf("claim audio: %w", err)
	}

	artifact, err := w.produce(ctx, article, claim)
	if err != nil {
		w.release(ctx, claim, err)
		return result, err
	}

	result.Outcome = OutcomeGenerated
	result.Artifact = artifact

	if w.events != nil {
		msg := domain.AudioReady{
			ArticleID: articleID,
			AudioURL:  artifact.URL,
			Length:    artifact.Length,
			Duration:  artifact.DurationMinutes,
		}
		if err := w.events.PublishAudioReady(ctx, msg); err != nil {
			w.log.Warn("audio-ready notification failed", "article_id", articleID, "error", err)
		}
	}
	w.log.Info("audio generated",
		"article_id", articleID,
		"url", artifact.URL,
		"bytes", artifact.Length,
		"minutes", artifact.DurationMinutes,
		"attempt", claim.Attempt,
	)
	return result, nil
}

// HandleTask adapts Generate to the dispatcher handler signature.
func (w *Worker) HandleTask(ctx context.Context, task domain.Task) error {
	_, err := w.Generate(ctx, task.ArticleID)
	return err
}

// GenerateAll runs Generate for every id on a pool of at most concurrency goroutines.
// Failures are collected per article and never cancel the others.
func (w *Worker) GenerateAll(ctx context.Context, ids []string, concurrency int) ([]Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]Result, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i], errs[i] = w.Generate(ctx, id)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("article %s: %w", id, errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

func (w *Worker) produce(ctx context.Context, article domain.Article, claim domain.Claim) (domain.AudioArtifact, error) {
	text := w.narration(ctx, article)

	var speech []byte
	err := retry.Do(ctx, w.retry, func(ctx context.Context, attempt int) error {
		var err error
		speech, err = w.synth.Synthesize(ctx, text)
		if err != nil {
			w.log.Debug("synthesis attempt failed", "article_id", article.ID, "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("synthesize: %w", err)
	}

	final := speech
	if w.mixer != nil {
		final, err = w.mixer.Mix(ctx, speech)
		if err != nil {
			return domain.AudioArtifact{}, fmt.Errorf("mix background: %w", err)
		}
	}

	key := ClaimObjectKey(article, claim.Attempt)
	var audioURL string
	err = retry.Do(ctx, w.retry, func(ctx context.Context, attempt int) error {
		var err error
		audioURL, err = w.blobs.Put(ctx, key, final, domain.AudioMIMEType)
		return err
	})
	if err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("upload audio: %w", err)
	}

	measured := domain.AudioResult{URL: audioURL, Length: int64(len(final))}
	if w.prober != nil {
		d, err := w.prober.Duration(final)
		if err != nil {
			w.log.Warn("duration probe failed", "article_id", article.ID, "error", err)
		} else {
			measured.DurationMinutes = domain.MinutesOf(d)
		}
	}

	artifact, err := w.audio.CompleteAudio(ctx, claim, measured)
	if err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("complete audio: %w", err)
	}
	return artifact, nil
}

func (w *Worker) narration(ctx context.Context, article domain.Article) string {
	text := article.NarrationText()
	if w.script != nil {
		var script string
		err := retry.Do(ctx, w.retry, func(ctx context.Context, attempt int) error {
			var err error
			script, err = w.script.WriteScript(ctx, article)
			return err
		})
		switch {
		case err != nil:
			w.log.Warn("script writer failed, narrating article text", "article_id", article.ID, "error", err)
		case strings.TrimSpace(script) != "":
			text = script
		}
	}
	if w.spell {
		text = numwords.ReplaceHungarian(text)
	}
	return text
}

func (w *Worker) release(ctx context.Context, claim domain.Claim, cause error) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := w.audio.ReleaseAudio(releaseCtx, claim, cause.Error()); err != nil {
		w.log.Warn("claim release failed", "article_id", claim.ArticleID, "error", err)
		return
	}
	w.log.Warn("audio generation failed", "article_id", claim.ArticleID, "attempt", claim.Attempt, "error", cause)
}

// ObjectKey derives the stable storage key of an article's audio.
func ObjectKey(article domain.Article) string {
	id := strings.ReplaceAll(article.ID, "-", "")
	if len(id) > shortIDLen {
		id = id[:shortIDLen]
	}
	name := slug.Make(article.Title, slugMaxLen)
	if id != "" {
		name += "-" + slug.Make(id, shortIDLen)
	}
	return "audio/" + name + ".mp3"
}

// ClaimObjectKey is the key written under one claim. Attempts after the first get their own
// object, so an upload from a claim that was taken over never replaces the recorded audio.
func ClaimObjectKey(article domain.Article, attempt int) string {
	key := ObjectKey(article)
	if attempt <= 1 {
		return key
	}
	return strings.TrimSuffix(key, ".mp3") + "-r" + strconv.Itoa(attempt) + ".mp3"
}
