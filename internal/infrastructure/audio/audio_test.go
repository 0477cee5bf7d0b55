package audio

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"NewsCaster/internal/config"
	"NewsCaster/internal/infrastructure/blob"
)

func TestMixerArgs(t *testing.T) {
	t.Parallel()

	m := NewFFmpegMixer(config.MixerConfig{AttenuationDB: 15}, nil, nil)
	args := strings.Join(m.args("v.mp3", "bg.mp3", "out.mp3"), " ")

	for _, want := range []string{
		"-i v.mp3 -stream_loop -1 -i bg.mp3",
		"[1:a]volume=-15dB[bg]",
		"amix=inputs=2:duration=first",
		"-b:a 192k out.mp3",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
}

func TestFormatDB(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{15: "15", 12.5: "12.5", -6: "6", 0: "0"}
	for in, want := range cases {
		if got := formatDB(in); got != want {
			t.Errorf("formatDB(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestMixerWithoutBackgroundReturnsNarration(t *testing.T) {
	t.Parallel()

	store, err := blob.NewFileStore(t.TempDir(), "http://localhost/public")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	m := NewFFmpegMixer(config.MixerConfig{
		FFmpegBinary:  "/nonexistent/ffmpeg",
		BackgroundKey: "assets/ticker_bg.mp3",
	}, store, nil)

	narration := []byte("narration")
	out, err := m.Mix(context.Background(), narration)
	if err != nil {
		t.Fatalf("mix: %v", err)
	}
	if !bytes.Equal(out, narration) {
		t.Fatalf("narration altered without background")
	}

	if _, err := store.Put(context.Background(), "assets/ticker_bg.mp3", []byte("bg"), "audio/mpeg"); err != nil {
		t.Fatalf("put background: %v", err)
	}
	if _, err := m.Mix(context.Background(), narration); err == nil {
		t.Fatalf("expected ffmpeg failure to surface")
	}
}

func TestProberRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := (MP3Prober{}).Duration(nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
	if _, err := (MP3Prober{}).Duration([]byte("definitely not an mp3 stream")); err == nil {
		t.Fatalf("expected error for invalid data")
	}
}
