package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrFFmpegUnavailable is returned when the ffmpeg binary cannot be found.
var ErrFFmpegUnavailable = errors.New("ffmpeg not available")

// FFmpeg extracts audio tracks from video files.
type FFmpeg struct {
	Bin string
}

// ExtractAudio writes the audio track of videoPath to a temporary 16 kHz mono
// wav file. The caller must run cleanup once done with the file.
func (f FFmpeg) ExtractAudio(ctx context.Context, videoPath string) (string, func(), error) {
	bin := f.Bin
	if bin == "" {
		bin = "ffmpeg"
	}
	bin, err := exec.LookPath(bin)
	if err != nil {
		return "", func() {}, fmt.Errorf("%w: %v", ErrFFmpegUnavailable, err)
	}
	tmp, err := os.CreateTemp("", "iorganise-audio-*.wav")
	if err != nil {
		return "", func() {}, err
	}
	out := tmp.Name()
	_ = tmp.Close()
	cleanup := func() { _ = os.Remove(out) }

	cmd := exec.CommandContext(ctx, bin, "-nostdin", "-y", "-loglevel", "error",
		"-i", videoPath, "-vn", "-ac", "1", "-ar", "16000", "-f", "wav", out)
	if b, err := cmd.CombinedOutput(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("ffmpeg: %v: %s", err, strings.TrimSpace(string(b)))
	}
	return out, cleanup, nil
}
