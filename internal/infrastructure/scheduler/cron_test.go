package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestAddRejectsInvalidExpression(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(time.UTC, nil)
	if err := s.Add("not a cron", func(time.Time) {}); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := s.Add("*/15 * * * *", func(time.Time) {}); err != nil {
		t.Fatalf("valid expression rejected: %v", err)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(time.UTC, nil)
	if err := s.Add("5 * * * *", func(time.Time) {}); err != nil {
		t.Fatalf("add: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	next := s.Next()
	if len(next) != 1 || next[0].Minute() != 5 {
		t.Fatalf("unexpected next runs: %v", next)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
