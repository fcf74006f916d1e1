package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bugmaschine/vembed/internal/config"
	"github.com/bugmaschine/vembed/internal/providers"
	"github.com/bugmaschine/vembed/internal/resolver"
)

type recorder struct {
	cfg  config.Config
	urls []string
	in   string
	out  string
}

func (r *recorder) runner() Runner {
	return Runner{
		Serve: func(_ context.Context, cfg config.Config, _ *Args) error {
			r.cfg = cfg
			return nil
		},
		Resolve: func(_ context.Context, cfg config.Config, _ *Args, urls []string) error {
			r.cfg, r.urls = cfg, urls
			return nil
		},
		Normalize: func(cfg config.Config, urls []string) error {
			r.cfg, r.urls = cfg, urls
			return nil
		},
		Transcode: func(_ context.Context, _ config.Config, _ *Args, in, out string) error {
			r.in, r.out = in, out
			return nil
		},
	}
}

func execute(t *testing.T, cfg config.Config, argv ...string) (*recorder, error) {
	t.Helper()
	rec := &recorder{}
	cmd := NewRootCommand(&Args{}, &cfg, rec.runner())
	cmd.SetArgs(argv)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return rec, cmd.ExecuteContext(context.Background())
}

func TestFlagsOverrideConfig(t *testing.T) {
	base := config.Default()
	base.RedisURL = "redis://from-env:6379"
	base.CacheSize = 99

	rec, err := execute(t, base, "serve", "--addr", ":9999", "--rate", "30/m", "--timeout", "5s", "-d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.cfg.Addr != ":9999" || rec.cfg.FetchTimeout != 5*time.Second || rec.cfg.RequestsPerSecond != 0.5 {
		t.Errorf("flags not applied: %+v", rec.cfg)
	}
	if rec.cfg.LogLevel != "debug" {
		t.Errorf("expected debug level, got %q", rec.cfg.LogLevel)
	}
	// unset flags keep the environment values
	if rec.cfg.RedisURL != "redis://from-env:6379" || rec.cfg.CacheSize != 99 {
		t.Errorf("unchanged flags overrode config: %+v", rec.cfg)
	}
}

func TestInvalidFlags(t *testing.T) {
	if _, err := execute(t, config.Default(), "serve", "--rate", "fast"); err == nil {
		t.Error("expected invalid rate to fail")
	}
	if _, err := execute(t, config.Default(), "serve", "--log-format", "xml"); err == nil {
		t.Error("expected invalid log format to fail")
	}
}

func TestResolveCommandArgs(t *testing.T) {
	if _, err := execute(t, config.Default(), "resolve"); err == nil {
		t.Fatal("expected error without URL or queue file")
	}

	queue := filepath.Join(t.TempDir(), "queue.txt")
	content := "# weekly\nhttps://mixdrop.co/f/abc # main mirror\n\nsomehost.com/redirect.php?x=1\n"
	if err := os.WriteFile(queue, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rec, err := execute(t, config.Default(), "resolve", "https://dood.to/d/1", "-q", queue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"https://dood.to/d/1", "https://mixdrop.co/f/abc", "somehost.com/redirect.php?x=1"}
	if !reflect.DeepEqual(rec.urls, expected) {
		t.Errorf("\nExpected: %q\nGot:      %q", expected, rec.urls)
	}
}

func TestTranscodeCommandArgs(t *testing.T) {
	rec, err := execute(t, config.Default(), "transcode", "in.mkv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.in != "in.mkv" || rec.out != "" {
		t.Errorf("unexpected args %q %q", rec.in, rec.out)
	}
}

type mapResolver map[string]string

func (m mapResolver) Resolve(_ context.Context, raw string) (*resolver.Result, error) {
	if embed, ok := m[raw]; ok {
		return &resolver.Result{EmbedURL: embed, Provider: providers.Classify(embed), ResolvedURL: raw}, nil
	}
	return nil, &resolver.Error{Stage: "scan", URL: raw, ResolvedURL: raw + "/landed", Err: resolver.ErrNotEmbeddable}
}

func TestResolveBatch(t *testing.T) {
	r := mapResolver{
		"a": "https://mixdrop.co/e/a",
		"c": "https://dood.to/e/c",
	}
	var out, progress bytes.Buffer
	failed, err := ResolveBatch(context.Background(), r, []string{"a", "b", "c"}, &out, BatchOptions{Concurrent: 3, Progress: &progress})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed != 1 {
		t.Errorf("expected 1 failure, got %d", failed)
	}

	var lines []Line
	for _, raw := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var l Line
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			t.Fatalf("invalid line %q: %v", raw, err)
		}
		lines = append(lines, l)
	}
	if len(lines) != 3 || lines[0].URL != "a" || lines[1].URL != "b" || lines[2].URL != "c" {
		t.Fatalf("expected input order, got %+v", lines)
	}
	if !lines[0].Success || lines[0].Provider != "mixdrop" {
		t.Errorf("unexpected first line %+v", lines[0])
	}
	if lines[1].Success || lines[1].ResolvedURL != "b/landed" || lines[1].Error == "" {
		t.Errorf("unexpected failed line %+v", lines[1])
	}
}

func TestResolveBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ResolveBatch(ctx, mapResolver{}, []string{"a", "b"}, &bytes.Buffer{}, BatchOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPrintNormalized(t *testing.T) {
	var buf bytes.Buffer
	PrintNormalized(&buf, providers.DefaultRules, []string{"mixdrop.co/f/xyz123", "somehost.com/redirect.php?x=1"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "https://mixdrop.co/e/xyz123") || !strings.Contains(lines[0], "mixdrop") {
		t.Errorf("unexpected line %q", lines[0])
	}
	if !strings.Contains(lines[1], "unknown") || !strings.Contains(lines[1], "remote") {
		t.Errorf("unexpected line %q", lines[1])
	}
}
