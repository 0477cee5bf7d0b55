package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"NewsCaster/internal/config"
	"NewsCaster/internal/domain"
	"NewsCaster/internal/logging"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(dir, "app.db")}
	cfg.Storage = config.StorageConfig{Root: filepath.Join(dir, "public"), PublicBaseURL: "https://cdn.example/public"}
	cfg.Sources = nil
	cfg.Redis.URL = ""
	cfg.Synthesis.APIKey = ""
	cfg.Notifications.Telegram = config.TelegramConfig{}
	return cfg
}

func TestApplicationRunsOnSQLiteWithoutRedis(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	application, err := New(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = application.Close() })

	if err := application.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if application.local == nil || application.queue != nil {
		t.Fatalf("expected the in-process dispatcher")
	}

	report, err := application.Ingest(ctx)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Sources != 0 || report.Inserted != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	episodes, err := application.Episodes(ctx)
	if err != nil || len(episodes) != 0 {
		t.Fatalf("episodes: %v %v", episodes, err)
	}
	if _, err := application.Assembler.Assemble(ctx); !errors.Is(err, domain.ErrNoEpisodes) {
		t.Fatalf("expected ErrNoEpisodes, got %v", err)
	}
	if err := application.Work(ctx); err == nil {
		t.Fatalf("work must require the redis backend")
	}
}

func TestApplicationDeadLettersWithoutSynthesizer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dispatcher.MaxAttempts = 1
	cfg.Retry.MaxAttempts = 1
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	application, err := New(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = application.Close() })
	if err := application.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	article, err := application.Collector.SubmitHTML(ctx, "p1", "<h1>Forint</h1><p>Gyengült a forint.</p>")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := application.Worker.Generate(ctx, article.ID); err == nil {
		t.Fatalf("expected an error without a configured synthesizer")
	}
}
