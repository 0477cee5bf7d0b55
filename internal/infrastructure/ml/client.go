package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"NewsCaster/internal/config"
	"NewsCaster/internal/domain"
	"NewsCaster/internal/ports"
	"NewsCaster/internal/retry"
)

// Client talks to an external ML service for translation and summarization.
type Client struct {
	endpoint       string
	apiKey         string
	targetLanguage string
	summarize      bool
	http           *http.Client
}

var _ ports.Enricher = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.EnrichmentConfig) *Client {
	return &Client{
		endpoint:       strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:         cfg.APIKey,
		targetLanguage: cfg.TargetLanguage,
		summarize:      cfg.Summarize,
		http:           &http.Client{Timeout: 15 * time.Second},
	}
}

// Enrich translates title and text into the target language, then optionally
// replaces the description with a summary of the full text.
func (c *Client) Enrich(ctx context.Context, article domain.Article) (domain.Article, error) {
	if c.http == nil || c.endpoint == "" {
		return article, nil
	}

	if c.targetLanguage != "" {
		payload := map[string]any{
			"title":           article.Title,
			"description":     article.Description,
			"content":         article.FullText,
			"target_language": c.targetLanguage,
		}
		var resp struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Content     string `json:"content"`
		}
		if err := c.post(ctx, "/translate", payload, &resp); err != nil {
			return domain.Article{}, fmt.Errorf("translate article: %w", err)
		}
		article.Title = firstNonEmpty(resp.Title, article.Title)
		article.Description = firstNonEmpty(resp.Description, article.Description)
		article.FullText = firstNonEmpty(resp.Content, article.FullText)
	}

	if c.summarize && strings.TrimSpace(article.FullText) != "" {
		payload := map[string]any{
			"title":   article.Title,
			"content": article.FullText,
		}
		var resp struct {
			Summary string `json:"summary"`
		}
		if err := c.post(ctx, "/summarize", payload, &resp); err != nil {
			return domain.Article{}, fmt.Errorf("summarize article: %w", err)
		}
		article.Description = firstNonEmpty(resp.Summary, article.Description)
	}

	return article, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		statusErr := fmt.Errorf("unexpected status %s", resp.Status)
		if closeErr != nil {
			statusErr = fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(statusErr)
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
