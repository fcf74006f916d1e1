// Package chrome fetches pages with a headless Chromium so redirectors that only
// move on via script still land on the provider page.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bugmaschine/vembed/internal/resolver"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	DefaultSettle = 2 * time.Second
	defaultUA     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

var chromiumNames = []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"}

// hides navigator.webdriver from page scripts
const stealthScript = `
	Object.defineProperty(window, "navigator", {
		value: new Proxy(navigator, {
			has: (target, key) => (key === "webdriver" ? false : key in target),
			get: (target, key) =>
			key === "webdriver"
				? false
				: typeof target[key] === "function"
				? target[key].bind(target)
				: target[key],
		}),
	});
`

type Options struct {
	// ExecPath overrides the Chromium lookup on PATH.
	ExecPath  string
	UserAgent string
	// DataDir holds the browser profile; empty uses a temporary profile.
	DataDir string
	// Settle is how long to wait after load for scripted redirects.
	Settle time.Duration
	Debug  bool
}

// Fetcher implements resolver.Fetcher. The browser is started on first use and
// shared by all fetches; each fetch gets its own tab.
type Fetcher struct {
	opts Options

	mu          sync.Mutex
	browserCtx  context.Context
	allocCancel context.CancelFunc
	taskCancel  context.CancelFunc
}

func NewFetcher(opts Options) *Fetcher {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUA
	}
	return &Fetcher{opts: opts}
}

// FindChromium returns the configured executable or the first Chromium on PATH.
func FindChromium(configured string) (string, error) {
	if configured != "" {
		return exec.LookPath(configured)
	}
	for _, bin := range chromiumNames {
		if path, err := exec.LookPath(bin); err == nil {
			return path, nil
		}
	}
	return "", errors.New("chromium not found in PATH")
}

func (f *Fetcher) allocatorOptions(execPath string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(execPath),
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.DisableGPU,
		chromedp.Flag("headless", "new"),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("exclude-switches", "enable-automation,enable-logging"),
		chromedp.UserAgent(f.opts.UserAgent),
		chromedp.WindowSize(1280, 720),
	}
	if f.opts.DataDir != "" {
		opts = append(opts, chromedp.UserDataDir(filepath.Join(f.opts.DataDir, "chrome-profile")))
	}
	return opts
}

func (f *Fetcher) browser() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browserCtx != nil {
		return f.browserCtx, nil
	}

	execPath, err := FindChromium(f.opts.ExecPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("Starting chromium", "path", execPath)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), f.allocatorOptions(execPath)...)

	var contextOpts []chromedp.ContextOption
	if f.opts.Debug {
		contextOpts = append(contextOpts,
			chromedp.WithLogf(func(s string, i ...interface{}) { slog.Debug(fmt.Sprintf(s, i...)) }),
		)
	}
	taskCtx, taskCancel := chromedp.NewContext(allocCtx, contextOpts...)

	// starts the browser
	if err := chromedp.Run(taskCtx); err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed to start: %w", err)
	}

	f.browserCtx, f.allocCancel, f.taskCancel = taskCtx, allocCancel, taskCancel
	return taskCtx, nil
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*resolver.Page, error) {
	browserCtx, err := f.browser()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	// tie the tab to the caller's context
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	if err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})); err != nil {
		return nil, fmt.Errorf("prepare tab: %w", err)
	}

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(rawURL))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("navigate: %w", err)
	}

	var location, html string
	if err := chromedp.Run(tabCtx,
		chromedp.Sleep(f.opts.Settle),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read page: %w", err)
	}

	return pageFromBrowser(resp, location, html)
}

// pageFromBrowser builds a resolver page from the navigation response and the
// final document state.
func pageFromBrowser(resp *network.Response, location, html string) (*resolver.Page, error) {
	landed, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid browser location %q: %w", location, err)
	}
	p := &resolver.Page{URL: landed, StatusCode: 200, ContentType: "text/html", Body: []byte(html)}

	// the response belongs to the first navigation; only trust it if no script
	// moved the page afterwards
	if resp != nil && strings.TrimRight(resp.URL, "/") == strings.TrimRight(location, "/") {
		p.StatusCode = int(resp.Status)
		if resp.MimeType != "" {
			p.ContentType = resp.MimeType
		}
	}
	if p.StatusCode >= 400 {
		return p, &resolver.HTTPStatusError{URL: location, StatusCode: p.StatusCode}
	}
	return p, nil
}

// Close stops the browser if it was started.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taskCancel != nil {
		f.taskCancel()
		f.allocCancel()
		f.browserCtx, f.taskCancel, f.allocCancel = nil, nil, nil
	}
}
