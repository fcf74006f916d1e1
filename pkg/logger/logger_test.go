package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestCustomHandlerWritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelDebug}))
	l.With("request_id", "abc").WithGroup("http").Info("resolved", "status", 200)

	out := buf.String()
	for _, want := range []string{"resolved", "request_id=abc", "http.status=200"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestCustomHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelWarn}))
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "json", slog.LevelInfo).Info("probe")
	if !strings.Contains(buf.String(), `"msg":"probe"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger for empty context")
	}

	var buf bytes.Buffer
	ctx := WithContext(context.Background(), New(&buf, "json", slog.LevelInfo))
	ctx = With(ctx, "request_id", "r-1")
	FromContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), `"request_id":"r-1"`) {
		t.Errorf("expected request_id attr, got %q", buf.String())
	}
}
