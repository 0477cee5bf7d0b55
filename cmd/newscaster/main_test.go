package main

import (
	"strings"
	"testing"
	"time"

	"NewsCaster/internal/domain"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCommand()
	want := []string{"serve", "ingest", "assemble", "work", "generate", "episodes", "migrate"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %s not registered: %v", name, err)
		}
	}
}

func TestRenderEpisodes(t *testing.T) {
	t.Parallel()

	out := renderEpisodes([]domain.Episode{{
		Article: domain.Article{
			Title:       "Gyengül a forint",
			Category:    "Gazdaság",
			PublishedAt: time.Date(2025, 11, 8, 9, 30, 0, 0, time.UTC),
		},
		Audio: domain.AudioArtifact{URL: "https://cdn.example/audio/forint.mp3", Length: 1536, DurationMinutes: 1.5},
	}})

	for _, want := range []string{"2025-11-08 09:30:00", "Gyengül a forint", "00:01:30", "1.5 KiB", "forint.mp3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestHumanBytes(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{512: "512 B", 2048: "2.0 KiB", 5 * 1024 * 1024: "5.0 MiB"}
	for in, want := range cases {
		if got := humanBytes(in); got != want {
			t.Fatalf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
