package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/retry"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "NEWSCASTER_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	redisURLEnv       = "REDIS_URL"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
	httpAddrEnv       = "HTTP_ADDR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Storage       StorageConfig      `yaml:"storage"`
	Sources       []SourceConfig     `yaml:"sources"`
	Ingest        IngestConfig       `yaml:"ingest"`
	History       HistoryConfig      `yaml:"history"`
	Synthesis     SynthesisConfig    `yaml:"synthesis"`
	Script        ScriptConfig       `yaml:"script"`
	Enrichment    EnrichmentConfig   `yaml:"enrichment"`
	Mixer         MixerConfig        `yaml:"mixer"`
	Worker        WorkerConfig       `yaml:"worker"`
	Retry         retry.Policy       `yaml:"retry"`
	Dispatcher    DispatcherConfig   `yaml:"dispatcher"`
	Feed          FeedConfig         `yaml:"feed"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	HTTP          HTTPConfig         `yaml:"http"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects level and handler format (text, json, auto).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the relational store. Driver is postgres or sqlite.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the Redis-backed queue, history and event bus when URL is set.
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// StorageConfig points the blob store at a directory served under PublicBaseURL.
type StorageConfig struct {
	Root          string `yaml:"root"`
	PublicBaseURL string `yaml:"publicBaseUrl"`
}

// SourceConfig describes a single feed with its scanner strategy.
type SourceConfig struct {
	Name     string            `yaml:"name"`
	Scanner  string            `yaml:"scanner"`
	URL      string            `yaml:"url"`
	Category string            `yaml:"category"`
	Keywords []string          `yaml:"keywords"`
	Options  map[string]string `yaml:"options"`
}

// IngestConfig tunes a collection pass.
type IngestConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	MaxNewPerRun int           `yaml:"maxNewPerRun"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	HTMLBaseURL  string        `yaml:"htmlBaseUrl"`
}

// HistoryConfig selects the seen-identifier cache backend (redis, blob, store, none).
type HistoryConfig struct {
	Backend string `yaml:"backend"`
	Key     string `yaml:"key"`
	Cap     int    `yaml:"cap"`
}

// SynthesisConfig defines how to contact the speech API.
type SynthesisConfig struct {
	Provider     string        `yaml:"provider"`
	APIKey       string        `yaml:"apiKey"`
	BaseURL      string        `yaml:"baseUrl"`
	Model        string        `yaml:"model"`
	Voice        string        `yaml:"voice"`
	Instructions string        `yaml:"instructions"`
	Timeout      time.Duration `yaml:"timeout"`
	// SpellNumbers writes digits out as Hungarian words before synthesis.
	SpellNumbers bool `yaml:"spellNumbers"`
}

// ScriptConfig controls the optional narration rewrite by an LLM.
type ScriptConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"apiKey"`
	Model     string `yaml:"model"`
	Language  string `yaml:"language"`
	MaxTokens int    `yaml:"maxTokens"`
}

// EnrichmentConfig describes the translation/summarization service.
type EnrichmentConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"apiKey"`
	TargetLanguage string `yaml:"targetLanguage"`
	Summarize      bool   `yaml:"summarize"`
}

// MixerConfig controls background-track post-processing.
type MixerConfig struct {
	Enabled       bool    `yaml:"enabled"`
	FFmpegBinary  string  `yaml:"ffmpegBinary"`
	BackgroundKey string  `yaml:"backgroundKey"`
	AttenuationDB float64 `yaml:"attenuationDb"`
	Bitrate       string  `yaml:"bitrate"`
}

// WorkerConfig bounds the audio synthesis pool.
type WorkerConfig struct {
	Concurrency int           `yaml:"concurrency"`
	ClaimTTL    time.Duration `yaml:"claimTtl"`
}

// DispatcherConfig selects the unit-of-work transport (local or redis).
type DispatcherConfig struct {
	Backend      string        `yaml:"backend"`
	MaxAttempts  int           `yaml:"maxAttempts"`
	Backoff      retry.Policy  `yaml:"backoff"`
	Buffer       int           `yaml:"buffer"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// FeedConfig defines channel metadata and episode selection.
type FeedConfig struct {
	Podcast   domain.Podcast `yaml:"podcast"`
	Window    time.Duration  `yaml:"window"`
	Category  string         `yaml:"category"`
	Limit     int            `yaml:"limit"`
	ObjectKey string         `yaml:"objectKey"`
}

// SchedulerConfig defines when ingestion and assembly run.
type SchedulerConfig struct {
	IngestCron   string         `yaml:"ingestCron"`
	AssembleCron string         `yaml:"assembleCron"`
	Timezone     string         `yaml:"timezone"`
	location     *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// HTTPConfig configures the trigger surface.
type HTTPConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allowOrigins"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An explicit path that cannot be read is an error; the env-provided path falls back to defaults.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(configPathEnv)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err != nil && explicit:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		case err != nil:
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		default:
			// Decoding over the defaults keeps every key the file omits.
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("worker.concurrency must be at least 1"))
	}
	if c.Ingest.Concurrency < 1 {
		errs = append(errs, errors.New("ingest.concurrency must be at least 1"))
	}
	switch c.Dispatcher.Backend {
	case "local":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("dispatcher.backend redis requires redis.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("dispatcher.backend %q is not supported", c.Dispatcher.Backend))
	}
	switch c.History.Backend {
	case "none", "blob", "store":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("history.backend redis requires redis.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("history.backend %q is not supported", c.History.Backend))
	}
	if strings.TrimSpace(c.Feed.Podcast.Title) == "" {
		errs = append(errs, errors.New("feed.podcast.title is required"))
	}
	if c.Feed.Window < 0 {
		errs = append(errs, errors.New("feed.window must not be negative"))
	}
	for i, src := range c.Sources {
		if src.Name == "" || src.URL == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name and url are required", i))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(redisURLEnv); v != "" {
		c.Redis.URL = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		if c.Synthesis.APIKey == "" {
			c.Synthesis.APIKey = v
		}
		if c.Script.Provider == "openai" && c.Script.APIKey == "" {
			c.Script.APIKey = v
		}
	}

	if v := os.Getenv(anthropicKeyEnv); v != "" && c.Script.Provider == "anthropic" && c.Script.APIKey == "" {
		c.Script.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Dispatcher.Backend = strings.ToLower(strings.TrimSpace(c.Dispatcher.Backend))
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
	c.Retry = c.Retry.Normalize()
	c.Dispatcher.Backoff = c.Dispatcher.Backoff.Normalize()
	if c.Dispatcher.MaxAttempts <= 0 {
		c.Dispatcher.MaxAttempts = 5
	}
	if c.History.Cap <= 0 {
		c.History.Cap = 1000
	}
	for i := range c.Sources {
		if c.Sources[i].Scanner == "" {
			c.Sources[i].Scanner = "rss"
		}
	}
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "auto"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "newscaster.db"},
		Redis:    RedisConfig{KeyPrefix: "newscaster"},
		Storage:  StorageConfig{Root: "public", PublicBaseURL: "http://localhost:8080/public"},
		Sources: []SourceConfig{
			{Name: "portfolio", Scanner: "rss", URL: "https://www.portfolio.hu/rss/all.xml"},
			{Name: "index-24ora", Scanner: "rss", URL: "https://index.hu/24ora/rss/"},
		},
		Ingest:  IngestConfig{Concurrency: 4, MaxNewPerRun: 30, FetchTimeout: 20 * time.Second, HTMLBaseURL: "https://example.com"},
		History: HistoryConfig{Backend: "blob", Key: "history.json", Cap: 1000},
		Synthesis: SynthesisConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini-tts",
			Voice:    "onyx",
			Instructions: "You are a news anchor. Speak with authority, emphasize the figures, " +
				"sound professional and serious.",
			Timeout:      60 * time.Second,
			SpellNumbers: true,
		},
		Script: ScriptConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Language:  "Hungarian",
			MaxTokens: 1024,
		},
		Mixer: MixerConfig{
			FFmpegBinary:  "ffmpeg",
			BackgroundKey: "assets/ticker_bg.mp3",
			AttenuationDB: 15,
			Bitrate:       "192k",
		},
		Worker: WorkerConfig{Concurrency: 5, ClaimTTL: 10 * time.Minute},
		Retry:  retry.Default(),
		Dispatcher: DispatcherConfig{
			Backend:      "local",
			MaxAttempts:  5,
			Backoff:      retry.Policy{InitialBackoff: 5 * time.Second, MaxBackoff: 5 * time.Minute, Multiplier: 2},
			Buffer:       256,
			PollInterval: time.Second,
		},
		Feed: FeedConfig{
			Podcast: domain.Podcast{
				Title:       "Hírek percről percre",
				Link:        "https://example.com",
				Description: "Narrated news, refreshed every hour.",
				ImageURL:    "https://example.com/cover.jpg",
				Language:    "hu-HU",
				Author:      "NewsCaster",
				OwnerName:   "NewsCaster",
				OwnerEmail:  "podcast@example.com",
				Category:    "News",
			},
			Window:    24 * time.Hour,
			ObjectKey: "podcast_feed.xml",
		},
		Scheduler: SchedulerConfig{
			IngestCron:   "*/15 * * * *",
			AssembleCron: "5 * * * *",
			Timezone:     defaultTimezone,
			location:     tz,
		},
		HTTP: HTTPConfig{Addr: ":8080", AllowOrigins: []string{"http://localhost:3000"}},
	}
}
