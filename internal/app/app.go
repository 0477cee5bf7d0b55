package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"NewsCaster/internal/config"
	"NewsCaster/internal/dispatch"
	"NewsCaster/internal/domain"
	"NewsCaster/internal/httpapi"
	"NewsCaster/internal/infrastructure/audio"
	"NewsCaster/internal/infrastructure/blob"
	"NewsCaster/internal/infrastructure/events"
	"NewsCaster/internal/infrastructure/history"
	"NewsCaster/internal/infrastructure/llm"
	"NewsCaster/internal/infrastructure/ml"
	"NewsCaster/internal/infrastructure/parser"
	"NewsCaster/internal/infrastructure/queue"
	"NewsCaster/internal/infrastructure/scheduler"
	"NewsCaster/internal/infrastructure/storage"
	"NewsCaster/internal/infrastructure/telegram"
	"NewsCaster/internal/infrastructure/tts"
	"NewsCaster/internal/logging"
	"NewsCaster/internal/ports"
	"NewsCaster/internal/scanner"
	"NewsCaster/internal/usecase"
)

const (
	shutdownTimeout  = 15 * time.Second
	assembleDebounce = 30 * time.Second
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	repo     *storage.Repository
	blobs    *blob.FileStore
	redis    *redis.Client
	bus      *events.RedisBus
	notifier ports.Notifier

	local *dispatch.LocalDispatcher
	queue *queue.RedisDispatcher

	Collector *usecase.Collector
	Worker    *usecase.Worker
	Assembler *usecase.Assembler
}

// New opens the stores and builds every use case from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	repo, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.repo = repo
	baseLogger.Debug("database opened", "dialect", repo.Dialect())

	a.blobs, err = blob.NewFileStore(cfg.Storage.Root, cfg.Storage.PublicBaseURL)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		a.bus = events.NewRedisBus(a.redis, events.ChannelsFor(cfg.Redis.KeyPrefix), a.component("events"))
	}

	a.notifier = telegram.Nop{}
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		a.notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	a.Worker = usecase.NewWorker(usecase.WorkerDeps{
		Articles:     repo,
		Audio:        repo,
		Synth:        a.synthesizer(),
		Script:       a.scriptWriter(),
		Mixer:        a.mixer(),
		Prober:       audio.MP3Prober{},
		Blobs:        a.blobs,
		Events:       a.publisher(),
		Retry:        cfg.Retry,
		ClaimTTL:     cfg.Worker.ClaimTTL,
		SpellNumbers: cfg.Synthesis.SpellNumbers,
		Logger:       a.component("worker"),
	})

	dispatcher := a.dispatcher()

	registry := scanner.NewRegistry(
		parser.NewRSSScanner(nil),
		parser.NewHTMLScanner(nil),
	)
	source := parser.NewStrategySource(registry, cfg.Sources, cfg.Ingest, a.component("source"))
	baseLogger.Debug("scanners registered", "names", registry.Names(), "sources", len(cfg.Sources))

	var enricher ports.Enricher
	if cfg.Enrichment.Endpoint != "" {
		enricher = ml.NewClient(cfg.Enrichment)
	}

	a.Collector = usecase.NewCollector(usecase.CollectorDeps{
		Source:       source,
		Store:        repo,
		History:      a.history(),
		Enricher:     enricher,
		Events:       a.publisher(),
		Dispatcher:   dispatcher,
		Backlog:      repo,
		Extractor:    parser.HTMLExtractor{},
		Retry:        cfg.Retry,
		MaxNewPerRun: cfg.Ingest.MaxNewPerRun,
		HTMLBaseURL:  cfg.Ingest.HTMLBaseURL,
		Logger:       a.component("collector"),
	})

	a.Assembler = usecase.NewAssembler(usecase.AssemblerDeps{
		Episodes:  repo,
		Blobs:     a.blobs,
		Notifier:  a.notifier,
		Podcast:   cfg.Feed.Podcast,
		Window:    cfg.Feed.Window,
		Category:  cfg.Feed.Category,
		Limit:     cfg.Feed.Limit,
		ObjectKey: cfg.Feed.ObjectKey,
		Retry:     cfg.Retry,
		Logger:    a.component("assembler"),
	})
	return a, nil
}

// Migrate applies the schema.
func (a *Application) Migrate(ctx context.Context) error {
	return a.repo.Migrate(ctx)
}

// Ingest runs one collection pass and, with the in-process dispatcher, waits for its audio tasks.
func (a *Application) Ingest(ctx context.Context) (usecase.Report, error) {
	if a.local != nil {
		a.local.Start(ctx)
		defer a.local.Stop()
	}
	report, err := a.Collector.Collect(ctx)
	if a.local != nil {
		a.local.Wait()
	}
	return report, err
}

// Episodes lists what the next feed would contain.
func (a *Application) Episodes(ctx context.Context) ([]domain.Episode, error) {
	return a.Assembler.Eligible(ctx, time.Now().UTC())
}

// Work consumes the Redis task queue until ctx ends.
func (a *Application) Work(ctx context.Context) error {
	if a.queue == nil {
		return errors.New("work requires dispatcher.backend redis")
	}
	if stats, err := a.queue.Stats(ctx); err == nil {
		a.logger.Info("queue consumers starting",
			"workers", a.cfg.Worker.Concurrency,
			"pending", stats.Pending,
			"processing", stats.Processing,
			"delayed", stats.Delayed,
			"dead", stats.Dead,
		)
	}
	return a.queue.Run(ctx, a.cfg.Worker.Concurrency, a.Worker.HandleTask)
}

// Serve runs the HTTP trigger surface, the cron jobs and the audio workers until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	trigger := usecase.NewTrigger(ctx, a.Assembler, assembleDebounce, a.component("trigger"))
	if a.bus != nil {
		if err := a.bus.SubscribeAudioReady(ctx, trigger.OnAudioReady); err != nil {
			return err
		}
	}

	if a.local != nil {
		a.local.Start(ctx)
		defer a.local.Stop()
		if a.bus != nil {
			err := a.bus.SubscribeArticleReady(ctx, func(msg domain.ArticleReady) {
				if err := a.local.Enqueue(ctx, domain.Task{ArticleID: msg.ArticleID}); err != nil {
					a.logger.Warn("article-ready not dispatched", "article_id", msg.ArticleID, "error", err)
				}
			})
			if err != nil {
				return err
			}
		}
	}
	if a.queue != nil {
		g.Go(func() error { return a.Work(ctx) })
	}

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.Location(), a.component("cron"))
	cron := usecase.NewScheduler(
		driver,
		a.Collector,
		a.Assembler,
		usecase.Schedule{Ingest: a.cfg.Scheduler.IngestCron, Assemble: a.cfg.Scheduler.AssembleCron},
		a.component("scheduler"),
	)
	if err := cron.Start(ctx); err != nil {
		return err
	}
	if next := driver.Next(); len(next) > 0 {
		a.logger.Info("scheduler started", "next_runs", next)
	}

	handlers := httpapi.NewHandlers(a.Worker, a.Collector, a.Assembler, a.repo, a.component("http"))
	router := httpapi.NewRouter(handlers, httpapi.RouterOptions{
		AllowOrigins: a.cfg.HTTP.AllowOrigins,
		PublicDir:    a.blobs.Root(),
		HiddenKeys:   a.hiddenKeys(),
	})
	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		a.logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = cron.Stop(shutdownCtx)
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the stores.
func (a *Application) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	return errors.Join(errs...)
}

func (a *Application) component(name string) *slog.Logger {
	return a.logger.With("component", name)
}

func (a *Application) publisher() ports.EventPublisher {
	if a.bus != nil {
		return a.bus
	}
	return events.NopPublisher{}
}

func (a *Application) dispatcher() ports.Dispatcher {
	policy := dispatch.Policy{MaxAttempts: a.cfg.Dispatcher.MaxAttempts, Backoff: a.cfg.Dispatcher.Backoff}
	deadLetter := func(ctx context.Context, task domain.Task, err error) {
		a.logger.Error("audio task failed permanently", "article_id", task.ArticleID, "attempt", task.Attempt, "error", err)
		msg := fmt.Sprintf("Audio generation failed for %s after %d attempts: %v", task.ArticleID, task.Attempt, err)
		if nerr := a.notifier.Notify(ctx, msg); nerr != nil {
			a.logger.Warn("dead-letter notification failed", "error", nerr)
		}
	}

	if a.cfg.Dispatcher.Backend == "redis" && a.redis != nil {
		a.queue = queue.NewRedisDispatcher(a.redis, queue.KeysFor(a.cfg.Redis.KeyPrefix), policy, queue.RedisOptions{
			PollInterval: a.cfg.Dispatcher.PollInterval,
			DeadLetter:   deadLetter,
			Logger:       a.component("queue"),
		})
		return a.queue
	}
	a.local = dispatch.NewLocal(a.Worker.HandleTask, policy, dispatch.LocalOptions{
		Workers:    a.cfg.Worker.Concurrency,
		Buffer:     a.cfg.Dispatcher.Buffer,
		DeadLetter: deadLetter,
		Logger:     a.component("dispatch"),
	})
	return a.local
}

func (a *Application) history() ports.HistorySet {
	h := a.cfg.History
	switch h.Backend {
	case "redis":
		if a.redis != nil {
			return history.NewRedisSet(a.redis, a.cfg.Redis.KeyPrefix+":"+h.Key, h.Cap)
		}
	case "blob":
		return history.NewBlobSet(a.blobs, h.Key, h.Cap)
	case "store":
		return history.NewStoreSet(a.repo)
	}
	return history.Nop{}
}

// hiddenKeys lists stored objects that are internal state rather than published content.
func (a *Application) hiddenKeys() []string {
	keys := []string{a.cfg.History.Key}
	if a.cfg.Mixer.BackgroundKey != "" {
		keys = append(keys, a.cfg.Mixer.BackgroundKey)
	}
	return keys
}

func (a *Application) synthesizer() ports.Synthesizer {
	synth, err := tts.NewOpenAISynthesizer(a.cfg.Synthesis)
	if err != nil {
		a.logger.Warn("speech synthesis disabled", "error", err)
		return nil
	}
	return synth
}

func (a *Application) scriptWriter() ports.ScriptWriter {
	sc := a.cfg.Script
	if !sc.Enabled || sc.APIKey == "" {
		return nil
	}
	if sc.Provider == "anthropic" {
		return llm.NewAnthropicWriter(sc)
	}
	return llm.NewOpenAIWriter(sc)
}

func (a *Application) mixer() ports.Mixer {
	if !a.cfg.Mixer.Enabled {
		return nil
	}
	return audio.NewFFmpegMixer(a.cfg.Mixer, a.blobs, a.component("mixer"))
}
