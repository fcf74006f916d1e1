package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bugmaschine/vembed/internal/config"
	"github.com/spf13/cobra"
)

// Args holds raw flag values. Only flags the user actually set override the
// loaded configuration (see Apply).
type Args struct {
	LogLevel  string
	LogFormat string
	LogFile   string
	Debug     bool

	UserAgent string
	Timeout   time.Duration
	LimitRate string
	Proxy     string
	Browser   bool

	Addr      string
	RedisURL  string
	CacheSize int

	QueueFile  string
	Remote     string
	Concurrent int
	NoProgress bool

	FfmpegPath string
	Force      bool
}

// Runner executes the commands once flags are parsed and applied to cfg.
type Runner struct {
	Serve     func(ctx context.Context, cfg config.Config, args *Args) error
	Resolve   func(ctx context.Context, cfg config.Config, args *Args, urls []string) error
	Normalize func(cfg config.Config, urls []string) error
	Transcode func(ctx context.Context, cfg config.Config, args *Args, in, out string) error
}

// Apply copies changed flags of cmd onto cfg and validates the result.
func (a *Args) Apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	changed := func(name string) bool {
		fl := f.Lookup(name)
		return fl != nil && fl.Changed
	}

	if changed("log-level") {
		cfg.LogLevel = a.LogLevel
	}
	if a.Debug {
		cfg.LogLevel = "debug"
	}
	if changed("log-format") {
		cfg.LogFormat = a.LogFormat
	}
	if changed("log") {
		cfg.LogFile = a.LogFile
	}
	if changed("user-agent") {
		cfg.UserAgent = a.UserAgent
	}
	if changed("timeout") {
		cfg.FetchTimeout = a.Timeout
	}
	if changed("rate") {
		rps, err := config.ParseRate(a.LimitRate)
		if err != nil {
			return fmt.Errorf("--rate: %w", err)
		}
		cfg.RequestsPerSecond = rps
	}
	if changed("proxy") {
		cfg.ProxyURL = a.Proxy
	}
	if changed("browser") {
		cfg.Browser = a.Browser
	}
	if changed("addr") {
		cfg.Addr = a.Addr
	}
	if changed("redis") {
		cfg.RedisURL = a.RedisURL
	}
	if changed("cache-size") {
		cfg.CacheSize = a.CacheSize
	}
	return cfg.Validate()
}

// NewRootCommand builds the vembed command tree. cfg is the configuration loaded
// from the environment; flags are applied to it before a command runs.
func NewRootCommand(args *Args, cfg *config.Config, run Runner) *cobra.Command {
	root := &cobra.Command{
		Use:           "vembed",
		Short:         "Resolve video page and redirector URLs into embeddable player URLs",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return args.Apply(cmd, cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&args.LogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	pf.StringVar(&args.LogFormat, "log-format", "pretty", "Log format (pretty, json)")
	pf.StringVarP(&args.LogFile, "log", "l", "", "Path to log file. If not set, logs will only be printed to console. WARNING: This will append to the log file.")
	pf.BoolVarP(&args.Debug, "debug", "d", false, "Enable debug logging")
	pf.StringVar(&args.UserAgent, "user-agent", "", "User-Agent for outbound requests")
	pf.DurationVar(&args.Timeout, "timeout", 20*time.Second, "Timeout for fetching a URL including redirects")
	pf.StringVarP(&args.LimitRate, "rate", "r", "inf", "Maximum outbound request rate (e.g. 5, 5/s, 30/m, inf)")
	pf.StringVar(&args.Proxy, "proxy", "", "Proxy URL for outbound requests")
	pf.BoolVar(&args.Browser, "browser", false, "Fetch pages with headless Chromium")

	root.AddCommand(
		newServeCommand(args, cfg, run),
		newResolveCommand(args, cfg, run),
		newNormalizeCommand(cfg, run),
		newTranscodeCommand(args, cfg, run),
	)
	return root
}

func newServeCommand(args *Args, cfg *config.Config, run Runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the resolve HTTP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run.Serve(cmd.Context(), *cfg, args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&args.Addr, "addr", ":8080", "Listen address")
	f.StringVar(&args.RedisURL, "redis", "", "Redis URL for a shared resolution cache")
	f.IntVar(&args.CacheSize, "cache-size", 4096, "In-process cache entries when Redis is not used")
	return cmd
}

func newResolveCommand(args *Args, cfg *config.Config, run Runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [URL...]",
		Short: "Resolve URLs and print one JSON line per URL",
		Long:  `Resolve URLs and print one JSON line per URL.

Provider pages are rewritten locally. Only URLs that look like redirectors
(VEMBED_REDIRECTOR_SEGMENTS, VEMBED_WRAPPER_HOSTS) are fetched.`,
		Args: func(cmd *cobra.Command, cmdArgs []string) error {
			if len(cmdArgs) > 0 || args.QueueFile != "" {
				return nil
			}
			return errors.New("you must provide either a URL or --queue-file")
		},
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			urls := cmdArgs
			if args.QueueFile != "" {
				queued, err := readQueue(args.QueueFile)
				if err != nil {
					return err
				}
				urls = append(urls, queued...)
			}
			return run.Resolve(cmd.Context(), *cfg, args, urls)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&args.QueueFile, "queue-file", "q", "", "Path to a file with one URL per line (# starts a comment)")
	f.StringVar(&args.Remote, "remote", "", "Resolve through a remote endpoint instead of in-process")
	f.IntVarP(&args.Concurrent, "concurrent", "N", 4, "Concurrent resolutions")
	f.BoolVar(&args.NoProgress, "no-progress", false, "Hide the progress bar")
	return cmd
}

func newNormalizeCommand(cfg *config.Config, run Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize URL...",
		Short: "Show the local rewrite for URLs without any network access",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			return run.Normalize(*cfg, cmdArgs)
		},
	}
}

func newTranscodeCommand(args *Args, cfg *config.Config, run Runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcode INPUT [OUTPUT]",
		Short: "Convert a video to a browser playable mp4 when needed",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			out := ""
			if len(cmdArgs) == 2 {
				out = cmdArgs[1]
			}
			return run.Transcode(cmd.Context(), *cfg, args, cmdArgs[0], out)
		},
	}
	f := cmd.Flags()
	f.StringVar(&args.FfmpegPath, "ffmpeg", "", "Path to the ffmpeg executable")
	f.BoolVarP(&args.Force, "force", "f", false, "Transcode even if the container is already playable")
	return cmd
}
