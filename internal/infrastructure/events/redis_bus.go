package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/ports"
)

// Channels names the pub/sub topics.
type Channels struct {
	ArticleReady string
	AudioReady   string
}

// ChannelsFor derives channel names from a key prefix.
func ChannelsFor(prefix string) Channels {
	if prefix == "" {
		prefix = "newscaster"
	}
	return Channels{
		ArticleReady: prefix + ":events:article-ready",
		AudioReady:   prefix + ":events:audio-ready",
	}
}

// RedisBus publishes pipeline notifications as JSON over Redis pub/sub.
// Delivery is fire-and-forget; subscribers that are offline miss messages.
type RedisBus struct {
	client   redis.UniversalClient
	channels Channels
	logger   *slog.Logger
}

var _ ports.EventPublisher = (*RedisBus)(nil)

// NewRedisBus binds the bus to client.
func NewRedisBus(client redis.UniversalClient, channels Channels, logger *slog.Logger) *RedisBus {
	return &RedisBus{client: client, channels: channels, logger: logger}
}

func (b *RedisBus) PublishArticleReady(ctx context.Context, msg domain.ArticleReady) error {
	return b.publish(ctx, b.channels.ArticleReady, msg)
}

func (b *RedisBus) PublishAudioReady(ctx context.Context, msg domain.AudioReady) error {
	return b.publish(ctx, b.channels.AudioReady, msg)
}

func (b *RedisBus) publish(ctx context.Context, channel string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// SubscribeAudioReady calls fn for every audio-ready message until ctx ends.
// The subscription is live once the function returns without error.
func (b *RedisBus) SubscribeAudioReady(ctx context.Context, fn func(domain.AudioReady)) error {
	return subscribe(ctx, b, b.channels.AudioReady, fn)
}

// SubscribeArticleReady calls fn for every article-ready message until ctx ends.
func (b *RedisBus) SubscribeArticleReady(ctx context.Context, fn func(domain.ArticleReady)) error {
	return subscribe(ctx, b, b.channels.ArticleReady, fn)
}

func subscribe[T any](ctx context.Context, b *RedisBus, channel string, fn func(T)) error {
	sub := b.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg T
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					if b.logger != nil {
						b.logger.Warn("discarding malformed event", "channel", channel, "error", err)
					}
					continue
				}
				fn(msg)
			}
		}
	}()
	return nil
}
