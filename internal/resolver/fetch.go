package resolver

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultMaxBody caps how much of a landed page is read for scanning.
const DefaultMaxBody = 2 << 20

// Page is what a Fetcher landed on after following redirects.
type Page struct {
	URL         *url.URL
	StatusCode  int
	ContentType string
	// Body is only populated for HTML documents and HLS playlists.
	Body []byte
}

func (p *Page) IsHTML() bool {
	ct := strings.ToLower(p.ContentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func (p *Page) IsPlaylist() bool {
	return isPlaylist(p.ContentType, p.URL)
}

func isPlaylist(contentType string, u *url.URL) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "mpegurl") {
		return true
	}
	return u != nil && strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
}

// Fetcher retrieves a URL, following redirects.
//
// A fetcher may return both a Page and an error (e.g. a 403 on the landed page);
// the resolver still inspects the landed URL in that case.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

type HTTPFetcher struct {
	Client  *http.Client
	MaxBody int64
}

func NewHTTPFetcher(c *http.Client) *HTTPFetcher {
	return &HTTPFetcher{Client: c, MaxBody: DefaultMaxBody}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	page := &Page{
		URL:         resp.Request.URL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}

	if page.ContentType == "" || page.IsHTML() || page.IsPlaylist() {
		max := f.MaxBody
		if max <= 0 {
			max = DefaultMaxBody
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, max))
		if err != nil {
			return page, err
		}
		page.Body = body
		if page.ContentType == "" && len(body) > 0 {
			page.ContentType = http.DetectContentType(body)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return page, &HTTPStatusError{URL: page.URL.String(), StatusCode: resp.StatusCode}
	}
	return page, nil
}
