package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"NewsCaster/internal/config"
	"NewsCaster/internal/domain"
	"NewsCaster/internal/ports"
)

// AnthropicWriter rewrites articles into narration scripts with the Messages API.
type AnthropicWriter struct {
	client    anthropic.Client
	model     anthropic.Model
	language  string
	maxTokens int64
}

var _ ports.ScriptWriter = (*AnthropicWriter)(nil)

// NewAnthropicWriter builds a writer from configuration.
func NewAnthropicWriter(cfg config.ScriptConfig, extra ...option.RequestOption) *AnthropicWriter {
	opts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}, extra...)
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	model := anthropic.Model(cfg.Model)
	if cfg.Model == "" {
		model = anthropic.Model("claude-haiku-4-5") // value of anthropic.ModelClaudeHaiku4_5 (SDK >= v1.19)
	}
	return &AnthropicWriter{
		client:    anthropic.NewClient(opts...),
		model:     model,
		language:  cfg.Language,
		maxTokens: maxTokens,
	}
}

// WriteScript returns the narration script for article.
func (w *AnthropicWriter) WriteScript(ctx context.Context, article domain.Article) (string, error) {
	resp, err := w.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     w.model,
		MaxTokens: w.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(w.language)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(article))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	script := cleanScript(sb.String())
	if script == "" {
		return "", errors.New("no response from anthropic")
	}
	return script, nil
}
