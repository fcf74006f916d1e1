package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bugmaschine/vembed/pkg/utils"
)

// Containers browsers play without help.
var playable = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".webm": true,
}

var transcodable = map[string]bool{
	".mkv":  true,
	".avi":  true,
	".wmv":  true,
	".flv":  true,
	".mov":  true,
	".mpeg": true,
	".mpg":  true,
	".ts":   true,
	".3gp":  true,
}

// NeedsTranscode reports whether a file must be converted to mp4 before it can be
// served to a browser player.
func NeedsTranscode(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if playable[ext] {
		return false
	}
	return transcodable[ext]
}

// OutputPath returns in with its extension replaced by .mp4.
func OutputPath(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".mp4"
}

type Ffmpeg struct {
	path string
}

// New uses path when set, otherwise ffmpeg from PATH.
func New(path string) *Ffmpeg {
	return &Ffmpeg{path: path}
}

func (f *Ffmpeg) GetFfmpegPath() (string, error) {
	if f.path != "" {
		return f.path, nil
	}
	path, err := exec.LookPath(ffmpegExecutableName())
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	return path, nil
}

func transcodeArgs(in, out string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-c:v", "libx264", "-preset", "veryfast",
		"-c:a", "aac",
		"-movflags", "+faststart",
		out,
	}
}

// Transcode converts in to an H.264/AAC mp4 at out. A partial output is removed
// when ffmpeg fails or ctx is cancelled.
func (f *Ffmpeg) Transcode(ctx context.Context, in, out string) error {
	bin, err := f.GetFfmpegPath()
	if err != nil {
		return err
	}
	if filepath.Clean(in) == filepath.Clean(out) {
		return fmt.Errorf("input and output are the same file: %s", in)
	}

	slog.Info("Transcoding", "input", in, "output", out)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, transcodeArgs(in, out)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if rmErr := utils.RemoveFileIgnoreNotExists(out); rmErr != nil {
			slog.Warn("failed to remove partial output", "path", out, "error", rmErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

func ffmpegExecutableName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}
