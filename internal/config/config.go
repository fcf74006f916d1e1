// Package config assembles runtime settings from defaults, .env files and the
// environment. Command line flags are applied on top by pkg/cli.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bugmaschine/vembed/internal/providers"
	"github.com/joho/godotenv"
)

var Version = "dev"

type Config struct {
	Addr        string
	Environment string

	UserAgent         string
	FetchTimeout      time.Duration
	MaxRedirects      int
	RequestsPerSecond float64
	ProxyURL          string
	Browser           bool

	CacheSize int
	CacheTTL  time.Duration
	RedisURL  string

	RedirectorSegments []string
	WrapperHosts       []string

	SentryDSN string
	LogLevel  string
	LogFormat string
	LogFile   string
}

func Default() Config {
	return Config{
		Addr:               ":8080",
		Environment:        "development",
		UserAgent:          fmt.Sprintf("vembed/%s (+embed resolver)", Version),
		FetchTimeout:       20 * time.Second,
		MaxRedirects:       10,
		CacheSize:          4096,
		CacheTTL:           6 * time.Hour,
		RedirectorSegments: append([]string(nil), providers.DefaultRules.RedirectorSegments...),
		LogLevel:           "info",
		LogFormat:          "pretty",
	}
}

// Load reads .env files and then the process environment.
func Load() (Config, error) {
	LoadDotEnv()
	return FromEnv(os.LookupEnv)
}

// LoadDotEnv loads .env.local and .env from the working directory. Variables that
// are already set win. VEMBED_DOTENV=0 disables it.
func LoadDotEnv() {
	if isDisabled(os.Getenv("VEMBED_DOTENV")) {
		return
	}
	for _, p := range []string{".env.local", ".env"} {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			slog.Warn("failed to load env file", "path", p, "error", err)
			continue
		}
		slog.Debug("loaded env file", "path", p)
	}
}

func isDisabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "off", "no":
		return true
	}
	return false
}

// FromEnv overlays environment variables on Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	var errs []error

	if v, ok := get("PORT"); ok {
		c.Addr = ":" + v
	}
	if v, ok := get("VEMBED_ADDR"); ok {
		c.Addr = v
	}
	if v, ok := get("VEMBED_ENV"); ok {
		c.Environment = v
	}
	if v, ok := get("VEMBED_USER_AGENT"); ok {
		c.UserAgent = v
	}
	if v, ok := get("VEMBED_FETCH_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("VEMBED_FETCH_TIMEOUT: %w", err))
		}
		c.FetchTimeout = d
	}
	if v, ok := get("VEMBED_MAX_REDIRECTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("VEMBED_MAX_REDIRECTS: %w", err))
		}
		c.MaxRedirects = n
	}
	if v, ok := get("VEMBED_RATE"); ok {
		r, err := ParseRate(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("VEMBED_RATE: %w", err))
		}
		c.RequestsPerSecond = r
	}
	if v, ok := get("VEMBED_PROXY"); ok {
		c.ProxyURL = v
	}
	if v, ok := get("VEMBED_BROWSER"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("VEMBED_BROWSER: %w", err))
		}
		c.Browser = b
	}
	if v, ok := get("VEMBED_CACHE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("VEMBED_CACHE_SIZE: %w", err))
		}
		c.CacheSize = n
	}
	if v, ok := get("VEMBED_CACHE_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("VEMBED_CACHE_TTL: %w", err))
		}
		c.CacheTTL = d
	}
	if v, ok := get("REDIS_URL"); ok {
		c.RedisURL = v
	}
	if v, ok := get("VEMBED_REDIRECTOR_SEGMENTS"); ok {
		c.RedirectorSegments = SplitList(v)
	}
	if v, ok := get("VEMBED_WRAPPER_HOSTS"); ok {
		c.WrapperHosts = SplitList(v)
	}
	if v, ok := get("SENTRY_DSN"); ok {
		c.SentryDSN = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := get("VEMBED_LOG_FILE"); ok {
		c.LogFile = v
	}

	if err := errors.Join(errs...); err != nil {
		return c, err
	}
	return c, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout))
	}
	if c.MaxRedirects < 1 {
		errs = append(errs, fmt.Errorf("max redirects must be at least 1, got %d", c.MaxRedirects))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate must not be negative, got %v", c.RequestsPerSecond))
	}
	if c.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("cache size must be at least 1, got %d", c.CacheSize))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache ttl must be positive, got %s", c.CacheTTL))
	}
	if c.ProxyURL != "" {
		if u, err := url.Parse(c.ProxyURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid proxy url %q", c.ProxyURL))
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "pretty", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be pretty or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Rules returns the redirector heuristic configured by c.
func (c Config) Rules() providers.Rules {
	return providers.Rules{RedirectorSegments: c.RedirectorSegments, WrapperHosts: c.WrapperHosts}
}

var rateRe = regexp.MustCompile(`^([\d.]+)\s*(?:/\s*([a-zA-Z]+))?$`)

// ParseRate parses an outbound request rate such as "5", "5/s", "30/m" or "inf"
// into requests per second. 0 means unlimited.
func ParseRate(input string) (float64, error) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, "inf") || input == "" {
		return 0, nil
	}

	m := rateRe.FindStringSubmatch(input)
	if m == nil {
		return 0, fmt.Errorf("invalid rate format: %s", input)
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}

	switch strings.ToLower(m[2]) {
	case "", "s", "sec", "second":
		return val, nil
	case "m", "min", "minute":
		return val / 60, nil
	case "h", "hour":
		return val / 3600, nil
	default:
		return 0, fmt.Errorf("invalid rate unit %q", m[2])
	}
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
