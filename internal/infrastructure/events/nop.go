package events

import (
	"context"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/ports"
)

// NopPublisher drops every event; used when no bus is configured.
type NopPublisher struct{}

var _ ports.EventPublisher = NopPublisher{}

func (NopPublisher) PublishArticleReady(context.Context, domain.ArticleReady) error { return nil }

func (NopPublisher) PublishAudioReady(context.Context, domain.AudioReady) error { return nil }
