package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"NewsCaster/internal/domain"
)

func TestRedisBusDeliversAudioReady(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus := NewRedisBus(client, ChannelsFor("test"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan domain.AudioReady, 1)
	if err := bus.SubscribeAudioReady(ctx, func(msg domain.AudioReady) { received <- msg }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	want := domain.AudioReady{ArticleID: "a1", AudioURL: "https://cdn.example/a1.mp3", Length: 4096, Duration: 1.5}
	if err := bus.PublishAudioReady(ctx, want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("message not delivered")
	}
}

func TestRedisBusArticleReadyUsesOwnChannel(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus := NewRedisBus(client, ChannelsFor("test"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	audio := make(chan domain.AudioReady, 1)
	articles := make(chan domain.ArticleReady, 1)
	if err := bus.SubscribeAudioReady(ctx, func(msg domain.AudioReady) { audio <- msg }); err != nil {
		t.Fatalf("subscribe audio: %v", err)
	}
	if err := bus.SubscribeArticleReady(ctx, func(msg domain.ArticleReady) { articles <- msg }); err != nil {
		t.Fatalf("subscribe articles: %v", err)
	}

	msg := domain.NewArticleReady(domain.Article{ID: "a1", Title: "t", Link: "l", PublishedAt: time.Unix(0, 0)})
	if err := bus.PublishArticleReady(ctx, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-articles:
		if got.ArticleID != "a1" || got.PubDate != "1970-01-01T00:00:00Z" {
			t.Fatalf("unexpected message: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("article-ready not delivered")
	}
	select {
	case got := <-audio:
		t.Fatalf("audio subscriber received article event: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}
