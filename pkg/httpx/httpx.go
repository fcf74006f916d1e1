package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout      = 20 * time.Second
	DefaultRetryMax     = 1
	DefaultMaxRedirects = 10
)

// Transport applies a default User-Agent, an optional request rate limit and a
// bounded retry for replayable requests on top of Base.
type Transport struct {
	Base      http.RoundTripper
	UserAgent string
	Limiter   *rate.Limiter
	// RetryMax is the number of retries after the first attempt.
	RetryMax int
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// only GET/HEAD without body can be replayed
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		if t.Limiter != nil {
			if err := t.Limiter.Wait(req.Context()); err != nil {
				return nil, err
			}
		}

		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" && t.UserAgent != "" {
			r.Header.Set("User-Agent", t.UserAgent)
		}

		resp, err := base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
	// RequestsPerSecond <= 0 disables throttling.
	RequestsPerSecond float64
	ProxyURL          string
	Base              http.RoundTripper
}

// NewClient builds the outbound client used to follow redirector URLs.
func NewClient(opts Options) (*http.Client, error) {
	base := opts.Base
	if base == nil {
		tr := &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
		}
		if p := strings.TrimSpace(opts.ProxyURL); p != "" {
			u, err := url.Parse(p)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy url: %w", err)
			}
			tr.Proxy = http.ProxyURL(u)
		}
		base = tr
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	return &http.Client{
		Transport: &Transport{
			Base:      base,
			UserAgent: opts.UserAgent,
			Limiter:   limiter,
			RetryMax:  DefaultRetryMax,
		},
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}, nil
}
