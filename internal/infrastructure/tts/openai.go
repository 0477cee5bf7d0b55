package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"NewsCaster/internal/config"
	"NewsCaster/internal/ports"
	"NewsCaster/internal/retry"
)

// maxInputRunes is the speech endpoint's input limit.
const maxInputRunes = 4096

// OpenAISynthesizer renders narration through the OpenAI speech endpoint as MP3.
type OpenAISynthesizer struct {
	client       openai.Client
	model        string
	voice        string
	instructions string
}

var _ ports.Synthesizer = (*OpenAISynthesizer)(nil)

// NewOpenAISynthesizer builds the synthesizer from configuration. Retries are
// left to the caller's retry policy.
func NewOpenAISynthesizer(cfg config.SynthesisConfig, extra ...option.RequestOption) (*OpenAISynthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("synthesis api key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	return &OpenAISynthesizer{
		client:       openai.NewClient(opts...),
		model:        cfg.Model,
		voice:        cfg.Voice,
		instructions: strings.TrimSpace(cfg.Instructions),
	}, nil
}

// Synthesize returns the encoded MP3 for text.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, retry.Permanent(errors.New("narration text is empty"))
	}
	if runes := []rune(text); len(runes) > maxInputRunes {
		text = string(runes[:maxInputRunes])
	}

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if s.instructions != "" {
		params.Instructions = openai.String(s.instructions)
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, classify(fmt.Errorf("openai speech: %w", err))
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech body: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("openai speech: empty audio")
	}
	return audio, nil
}

// classify marks client errors other than rate limiting as permanent.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		if code >= http.StatusBadRequest && code < http.StatusInternalServerError && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout {
			return retry.Permanent(err)
		}
	}
	return err
}
