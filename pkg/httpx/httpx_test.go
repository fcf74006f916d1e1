package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type failingTransport struct {
	calls int
}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, errors.New("connection reset")
}

func TestTransportSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c, err := NewClient(Options{UserAgent: "vembed-test/1.0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if got != "vembed-test/1.0" {
		t.Fatalf("expected user agent %q, got %q", "vembed-test/1.0", got)
	}
}

func TestTransportRetriesGetOnly(t *testing.T) {
	base := &failingTransport{}
	tr := &Transport{Base: base, RetryMax: 2}

	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	if _, err := tr.RoundTrip(req); err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 3 {
		t.Fatalf("expected 3 attempts for GET, got %d", base.calls)
	}

	base.calls = 0
	req, _ = http.NewRequest(http.MethodPost, "http://example.test/", http.NoBody)
	if _, err := tr.RoundTrip(req); err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("expected a single attempt for POST, got %d", base.calls)
	}
}

func TestClientStopsAfterMaxRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/loop", http.StatusFound)
	}))
	defer srv.Close()

	c, err := NewClient(Options{MaxRedirects: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Get(srv.URL); err == nil {
		t.Fatal("expected redirect loop error")
	}
}

func TestNewClientInvalidProxy(t *testing.T) {
	if _, err := NewClient(Options{ProxyURL: "http://[::1"}); err == nil {
		t.Fatal("expected error for invalid proxy url")
	}
}
