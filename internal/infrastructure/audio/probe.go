package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"NewsCaster/internal/ports"
)

// bytesPerFrame is 16-bit stereo, the only PCM layout the decoder emits.
const bytesPerFrame = 4

// MP3Prober measures playback length by decoding the stream.
type MP3Prober struct{}

var _ ports.DurationProber = MP3Prober{}

// Duration reports how long data plays.
func (MP3Prober) Duration(data []byte) (time.Duration, error) {
	if len(data) == 0 {
		return 0, errors.New("empty audio")
	}
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	rate := dec.SampleRate()
	length := dec.Length()
	if rate <= 0 || length < 0 {
		return 0, fmt.Errorf("mp3 stream has unknown length")
	}
	frames := length / bytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(rate), nil
}
