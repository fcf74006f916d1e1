package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/bugmaschine/vembed/internal/providers"
	"github.com/bugmaschine/vembed/internal/resolver"
	"github.com/bugmaschine/vembed/pkg/utils"
	"github.com/fatih/color"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Resolver is satisfied by the in-process service and the endpoint client.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (*resolver.Result, error)
}

// Line is one JSON line of resolve output.
type Line struct {
	URL         string `json:"url"`
	Success     bool   `json:"success"`
	EmbedURL    string `json:"embedUrl,omitempty"`
	Provider    string `json:"provider,omitempty"`
	ResolvedURL string `json:"resolvedUrl,omitempty"`
	Error       string `json:"error,omitempty"`
}

func readQueue(path string) ([]string, error) {
	lines, err := utils.ReadURLFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}
	urls := lines[:0]
	for _, line := range lines {
		// "https://example.com/f/1 # comment" -> "https://example.com/f/1"
		if i := strings.Index(line, " #"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line != "" {
			urls = append(urls, line)
		}
	}
	return urls, nil
}

type BatchOptions struct {
	Concurrent int
	// Progress, when set, receives the progress bar (usually os.Stderr).
	Progress io.Writer
}

// ResolveBatch resolves urls with bounded concurrency and writes one Line per URL
// to w in input order. It returns the number of failed URLs.
func ResolveBatch(ctx context.Context, r Resolver, urls []string, w io.Writer, opts BatchOptions) (int, error) {
	workers := opts.Concurrent
	if workers < 1 {
		workers = 1
	}

	var bar *mpb.Bar
	var progress *mpb.Progress
	if opts.Progress != nil && len(urls) > 1 {
		progress = mpb.NewWithContext(ctx, mpb.WithOutput(opts.Progress))
		bar = progress.AddBar(int64(len(urls)),
			mpb.PrependDecorators(
				decor.Name("Resolving ", decor.WC{W: 10}),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(decor.WCSyncSpace),
				decor.Name(" | "),
				decor.AverageETA(decor.ET_STYLE_GO),
			),
		)
	}

	lines := make([]Line, len(urls))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				lines[idx] = resolveLine(ctx, r, urls[idx])
				if bar != nil {
					bar.Increment()
				}
			}
		}()
	}

	for i := range urls {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if progress != nil {
		if ctx.Err() != nil {
			bar.Abort(false)
		}
		progress.Wait()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	failed := 0
	for _, l := range lines {
		if !l.Success {
			failed++
		}
		if err := enc.Encode(l); err != nil {
			return failed, err
		}
	}
	return failed, nil
}

func resolveLine(ctx context.Context, r Resolver, raw string) Line {
	res, err := r.Resolve(ctx, raw)
	if err != nil {
		slog.Debug("Failed to resolve", "url", raw, "error", err)
		return Line{URL: raw, Error: err.Error(), ResolvedURL: resolver.ResolvedURLOf(err)}
	}
	return Line{
		URL:         raw,
		Success:     true,
		EmbedURL:    res.EmbedURL,
		Provider:    res.Provider.String(),
		ResolvedURL: res.ResolvedURL,
	}
}

var (
	providerColor = color.New(color.FgGreen)
	unknownColor  = color.New(color.FgYellow)
	remoteColor   = color.New(color.FgCyan)
)

// PrintNormalized writes the local view of each URL: provider, rewrite and
// whether a remote resolution would be attempted.
func PrintNormalized(w io.Writer, rules providers.Rules, urls []string) {
	for _, raw := range urls {
		normalized := providers.Normalize(raw)
		tag := providers.Classify(normalized)

		tagStr := unknownColor.Sprint(tag)
		if tag != providers.Unknown {
			tagStr = providerColor.Sprint(tag)
		}

		embed, ok := providers.ToEmbedURL(normalized)
		if !ok {
			embed = "-"
		}
		remote := "local"
		if rules.ShouldResolveRemotely(normalized) {
			remote = remoteColor.Sprint("remote")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", normalized, tagStr, embed, remote)
	}
}
