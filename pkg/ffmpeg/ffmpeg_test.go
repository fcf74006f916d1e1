package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestNeedsTranscode(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"movie.mkv", true},
		{"clip.AVI", true},
		{"dir/old.flv", true},
		{"capture.ts", true},
		{"video.mp4", false},
		{"video.webm", false},
		{"video.M4V", false},
		{"notes.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := NeedsTranscode(tt.input); got != tt.expected {
			t.Errorf("NeedsTranscode(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestOutputPath(t *testing.T) {
	if got := OutputPath("/media/a.b/movie.mkv"); got != "/media/a.b/movie.mp4" {
		t.Errorf("unexpected output path %q", got)
	}
}

func TestTranscodeArgs(t *testing.T) {
	args := strings.Join(transcodeArgs("in.mkv", "out.mp4"), " ")
	for _, want := range []string{"-i in.mkv", "-c:v libx264", "-c:a aac", "+faststart out.mp4"} {
		if !strings.Contains(args, want) {
			t.Errorf("expected args to contain %q, got %q", want, args)
		}
	}
}

func TestTranscodeRemovesPartialOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as fake ffmpeg")
	}
	dir := t.TempDir()
	fake := filepath.Join(dir, "ffmpeg")
	// writes the last argument then fails
	script := "#!/bin/sh\nfor a; do out=$a; done\necho partial > \"$out\"\necho 'Invalid data found' >&2\nexit 1\n"
	if err := os.WriteFile(fake, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.mp4")
	err := New(fake).Transcode(context.Background(), filepath.Join(dir, "in.mkv"), out)
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected ffmpeg stderr in error, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("expected partial output to be removed, stat err %v", statErr)
	}
}

func TestTranscodeSameFile(t *testing.T) {
	if err := New("/bin/true").Transcode(context.Background(), "a.mp4", "./a.mp4"); err == nil {
		t.Fatal("expected error for identical input and output")
	}
}
