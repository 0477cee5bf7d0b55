// Package httpapi exposes the pipeline triggers over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/logging"
	"NewsCaster/internal/retry"
	"NewsCaster/internal/usecase"
)

type AudioGenerator interface {
	Generate(ctx context.Context, articleID string) (usecase.Result, error)
}

type Ingestor interface {
	Collect(ctx context.Context) (usecase.Report, error)
	SubmitHTML(ctx context.Context, pageID, html string) (domain.Article, error)
}

type FeedPublisher interface {
	Assemble(ctx context.Context) (usecase.FeedReport, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups the use cases behind the trigger endpoints.
type Handlers struct {
	audio  AudioGenerator
	ingest Ingestor
	feed   FeedPublisher
	db     Pinger
	log    *slog.Logger
}

func NewHandlers(audio AudioGenerator, ingest Ingestor, feed FeedPublisher, db Pinger, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handlers{audio: audio, ingest: ingest, feed: feed, db: db, log: logger}
}

// RouterOptions tunes the engine around the handlers.
type RouterOptions struct {
	AllowOrigins []string
	// PublicDir, when set, is served under /public so stored feeds and audio resolve locally.
	PublicDir string
	// HiddenKeys are object keys under PublicDir that are never served.
	HiddenKeys []string
}

// NewRouter registers every route on a fresh engine.
func NewRouter(h *Handlers, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if len(opts.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type"},
		}))
	}

	r.POST("/tasks/audio", h.GenerateAudio)
	r.POST("/tasks/ingest", h.RunIngest)
	r.POST("/tasks/feed", h.AssembleFeed)
	r.POST("/articles/html", h.SubmitHTML)
	r.GET("/health", h.GetHealth)
	if opts.PublicDir != "" {
		r.StaticFS("/public", newPublicFS(opts.PublicDir, opts.HiddenKeys))
	}
	return r
}

type audioRequest struct {
	ArticleID string `json:"article_id"`
}

type htmlRequest struct {
	PageID string `json:"page_id"`
	HTML   string `json:"html"`
}

type ingestResponse struct {
	Processed  int `json:"processed"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

func (h *Handlers) GenerateAudio(c *gin.Context) {
	var req audioRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ArticleID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "article_id is required"})
		return
	}

	res, err := h.audio.Generate(c.Request.Context(), req.ArticleID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	case err != nil:
		h.log.Error("audio task failed", "article_id", req.ArticleID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": coarse(err)})
		return
	}

	body := gin.H{"status": string(res.Outcome), "article_id": res.ArticleID}
	if res.Artifact.URL != "" {
		body["audio_url"] = res.Artifact.URL
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handlers) RunIngest(c *gin.Context) {
	report, err := h.ingest.Collect(c.Request.Context())
	if err != nil {
		h.log.Error("ingest failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": coarse(err)})
		return
	}
	c.JSON(http.StatusOK, ingestResponse{
		Processed:  report.Processed(),
		Inserted:   report.Inserted,
		Duplicates: report.Duplicates,
		Failed:     report.Failed,
	})
}

func (h *Handlers) AssembleFeed(c *gin.Context) {
	report, err := h.feed.Assemble(c.Request.Context())
	switch {
	case errors.Is(err, domain.ErrNoEpisodes):
		c.JSON(http.StatusConflict, gin.H{"error": "no eligible episodes"})
		return
	case err != nil:
		h.log.Error("feed assembly failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": coarse(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"episodes": report.Episodes, "url": report.URL})
}

func (h *Handlers) SubmitHTML(c *gin.Context) {
	var req htmlRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PageID) == "" || strings.TrimSpace(req.HTML) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_id and html are required"})
		return
	}

	article, err := h.ingest.SubmitHTML(c.Request.Context(), req.PageID, req.HTML)
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		c.JSON(http.StatusOK, gin.H{"status": "already_exists"})
		return
	case errors.Is(err, domain.ErrInvalidArticle):
		c.JSON(http.StatusBadRequest, gin.H{"error": "page has no readable content"})
		return
	case err != nil:
		h.log.Error("html submission failed", "page_id", req.PageID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": coarse(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stored", "article_id": article.ID})
}

func (h *Handlers) GetHealth(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// coarse hides adapter detail from callers; the full error is logged.
func coarse(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case retry.IsPermanent(err):
		return "permanent failure"
	default:
		return "temporary failure"
	}
}
