package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"NewsCaster/internal/config"
	"NewsCaster/internal/domain"
	"NewsCaster/internal/ports"
)

// OpenAIWriter rewrites articles into narration scripts with chat completions.
type OpenAIWriter struct {
	client    openai.Client
	model     string
	language  string
	maxTokens int
}

var _ ports.ScriptWriter = (*OpenAIWriter)(nil)

// NewOpenAIWriter builds a writer from configuration.
func NewOpenAIWriter(cfg config.ScriptConfig, extra ...option.RequestOption) *OpenAIWriter {
	opts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}, extra...)
	return &OpenAIWriter{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		language:  cfg.Language,
		maxTokens: cfg.MaxTokens,
	}
}

// WriteScript returns the narration script for article.
func (w *OpenAIWriter) WriteScript(ctx context.Context, article domain.Article) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(w.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(w.language)),
			openai.UserMessage(userPrompt(article)),
		},
	}
	if w.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(w.maxTokens))
	}

	resp, err := w.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from openai")
	}

	script := cleanScript(resp.Choices[0].Message.Content)
	if script == "" {
		return "", errors.New("openai returned an empty script")
	}
	return script, nil
}
