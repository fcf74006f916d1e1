package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bugmaschine/vembed/internal/cache"
	"github.com/bugmaschine/vembed/internal/client"
	"github.com/bugmaschine/vembed/internal/config"
	"github.com/bugmaschine/vembed/internal/resolver"
	"github.com/bugmaschine/vembed/internal/server"
	"github.com/bugmaschine/vembed/internal/service"
	"github.com/bugmaschine/vembed/internal/session"
	"github.com/bugmaschine/vembed/pkg/chrome"
	"github.com/bugmaschine/vembed/pkg/cli"
	"github.com/bugmaschine/vembed/pkg/dirs"
	"github.com/bugmaschine/vembed/pkg/ffmpeg"
	"github.com/bugmaschine/vembed/pkg/httpx"
	"github.com/bugmaschine/vembed/pkg/logger"
	"github.com/bugmaschine/vembed/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	args := &cli.Args{}
	rootCmd := cli.NewRootCommand(args, &cfg, cli.Runner{
		Serve:     serve,
		Resolve:   resolveURLs,
		Normalize: normalize,
		Transcode: transcode,
	})

	// Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("vembed failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func setupLogger(cfg config.Config) {
	logger.InitDefaultLogger(cfg.LogFormat, cfg.LogLevel, cfg.LogFile)
}

// newFetcher returns the page fetcher and a cleanup func.
func newFetcher(cfg config.Config) (resolver.Fetcher, func(), error) {
	if cfg.Browser {
		dataDir, err := dirs.GetDataDir()
		if err != nil {
			slog.Warn("No data directory, using a temporary browser profile", "error", err)
		}
		f := chrome.NewFetcher(chrome.Options{
			UserAgent: cfg.UserAgent,
			DataDir:   dataDir,
			Debug:     cfg.LogLevel == "debug",
		})
		return f, f.Close, nil
	}

	c, err := httpx.NewClient(httpx.Options{
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.FetchTimeout,
		MaxRedirects:      cfg.MaxRedirects,
		RequestsPerSecond: cfg.RequestsPerSecond,
		ProxyURL:          cfg.ProxyURL,
	})
	if err != nil {
		return nil, nil, err
	}
	return resolver.NewHTTPFetcher(c), func() {}, nil
}

func newStore(ctx context.Context, cfg config.Config) (cache.Store, func(), error) {
	if cfg.RedisURL == "" {
		return cache.NewLRUStore(cfg.CacheSize, cfg.CacheTTL), func() {}, nil
	}
	rc, err := cache.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Using redis resolution cache")
	return cache.NewRedisStore(rc, cfg.CacheTTL), func() { rc.Close() }, nil
}

func serve(ctx context.Context, cfg config.Config, _ *cli.Args) error {
	setupLogger(cfg)

	if err := telemetry.InitSentry(cfg.SentryDSN, cfg.Environment, config.Version); err != nil {
		slog.Warn("Sentry disabled", "error", err)
	}
	defer telemetry.Flush()

	fetcher, closeFetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := service.New(resolver.New(fetcher), store)
	srv := server.New(svc, server.Options{Addr: cfg.Addr, ResolveTimeout: cfg.FetchTimeout * 2})

	slog.Info("vembed started", "version", config.Version, "addr", cfg.Addr, "browser", cfg.Browser)
	return srv.ListenAndServe(ctx)
}

func resolveURLs(ctx context.Context, cfg config.Config, args *cli.Args, urls []string) error {
	setupLogger(cfg)

	var remote session.Remote
	if args.Remote != "" {
		remote = client.New(args.Remote, nil)
	} else {
		fetcher, closeFetcher, err := newFetcher(cfg)
		if err != nil {
			return err
		}
		defer closeFetcher()
		// the session memoizes; the service only folds duplicate URLs
		remote = service.New(resolver.New(fetcher), nil)
	}
	r := session.New(remote, session.WithRules(cfg.Rules()))

	opts := cli.BatchOptions{Concurrent: args.Concurrent}
	if !args.NoProgress {
		opts.Progress = os.Stderr
	}
	failed, err := cli.ResolveBatch(ctx, r, urls, os.Stdout, opts)
	if err != nil {
		return err
	}
	if failed > 0 {
		slog.Warn("Some URLs could not be resolved", "failed", failed, "total", len(urls))
	}
	return nil
}

func normalize(cfg config.Config, urls []string) error {
	cli.PrintNormalized(os.Stdout, cfg.Rules(), urls)
	return nil
}

func transcode(ctx context.Context, cfg config.Config, args *cli.Args, in, out string) error {
	setupLogger(cfg)

	if !args.Force && !ffmpeg.NeedsTranscode(in) {
		slog.Info("Already playable, nothing to do", "input", in)
		return nil
	}
	if out == "" {
		out = ffmpeg.OutputPath(in)
	}
	if _, err := os.Stat(in); err != nil {
		return fmt.Errorf("input: %w", err)
	}

	if err := ffmpeg.New(args.FfmpegPath).Transcode(ctx, in, out); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return err
	}
	slog.Info("Transcoded", "output", out)
	return nil
}
