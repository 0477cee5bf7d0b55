package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"NewsCaster/internal/config"
	"NewsCaster/internal/domain"
	"NewsCaster/internal/ports"
)

// FFmpegMixer lays a looped, attenuated background track under the narration.
type FFmpegMixer struct {
	binary        string
	backgroundKey string
	attenuationDB float64
	bitrate       string
	assets        ports.BlobStore
	logger        *slog.Logger
}

var _ ports.Mixer = (*FFmpegMixer)(nil)

// NewFFmpegMixer reads the background asset from assets on every mix.
func NewFFmpegMixer(cfg config.MixerConfig, assets ports.BlobStore, logger *slog.Logger) *FFmpegMixer {
	binary := cfg.FFmpegBinary
	if binary == "" {
		binary = "ffmpeg"
	}
	bitrate := cfg.Bitrate
	if bitrate == "" {
		bitrate = "192k"
	}
	return &FFmpegMixer{
		binary:        binary,
		backgroundKey: cfg.BackgroundKey,
		attenuationDB: cfg.AttenuationDB,
		bitrate:       bitrate,
		assets:        assets,
		logger:        logger,
	}
}

// Mix returns the narration unchanged when no background asset is available.
func (m *FFmpegMixer) Mix(ctx context.Context, narration []byte) ([]byte, error) {
	if m.backgroundKey == "" || m.assets == nil {
		return narration, nil
	}
	background, err := m.assets.Get(ctx, m.backgroundKey)
	if errors.Is(err, domain.ErrNotFound) {
		m.debug("background asset missing, skipping mix", "key", m.backgroundKey)
		return narration, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load background: %w", err)
	}

	dir, err := os.MkdirTemp("", "newscaster-mix-*")
	if err != nil {
		return nil, fmt.Errorf("create mix dir: %w", err)
	}
	defer os.RemoveAll(dir)

	voicePath := filepath.Join(dir, "voice.mp3")
	bgPath := filepath.Join(dir, "background.mp3")
	outPath := filepath.Join(dir, "mixed.mp3")
	if err := os.WriteFile(voicePath, narration, 0o600); err != nil {
		return nil, fmt.Errorf("write narration: %w", err)
	}
	if err := os.WriteFile(bgPath, background, 0o600); err != nil {
		return nil, fmt.Errorf("write background: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.binary, m.args(voicePath, bgPath, outPath)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	mixed, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read mixed audio: %w", err)
	}
	return mixed, nil
}

func (m *FFmpegMixer) args(voicePath, bgPath, outPath string) []string {
	filter := fmt.Sprintf(
		"[1:a]volume=-%sdB[bg];[0:a][bg]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[out]",
		formatDB(m.attenuationDB),
	)
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", voicePath,
		"-stream_loop", "-1", "-i", bgPath,
		"-filter_complex", filter,
		"-map", "[out]",
		"-c:a", "libmp3lame", "-b:a", m.bitrate,
		outPath,
	}
}

func formatDB(db float64) string {
	if db < 0 {
		db = -db
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", db), "0"), ".")
}

func (m *FFmpegMixer) debug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}
