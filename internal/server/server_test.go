package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bugmaschine/vembed/internal/providers"
	"github.com/bugmaschine/vembed/internal/resolver"
)

type stubResolver func(ctx context.Context, raw string) (*resolver.Result, error)

func (f stubResolver) Resolve(ctx context.Context, raw string) (*resolver.Result, error) {
	return f(ctx, raw)
}

func newTestHandler() http.Handler {
	return New(stubResolver(func(ctx context.Context, raw string) (*resolver.Result, error) {
		switch raw {
		case "somehost.com/redirect.php?x=1":
			return &resolver.Result{
				EmbedURL:    "https://mixdrop.co/e/abc987",
				Provider:    providers.Mixdrop,
				ResolvedURL: "https://mixdrop.co/f/abc987",
			}, nil
		case "https://wrapper.example/player":
			return &resolver.Result{
				EmbedURL:    "https://wrapper.example/player/xyz",
				Provider:    providers.Unknown,
				ResolvedURL: "https://wrapper.example/player",
			}, nil
		case "https://plain.example/":
			return nil, &resolver.Error{Stage: "scan", URL: raw, ResolvedURL: "https://plain.example/landing", Err: resolver.ErrNotEmbeddable}
		case "https://down.example/":
			return nil, &resolver.Error{Stage: "fetch", URL: raw, Err: errors.New("dial tcp: connection refused")}
		case "https://panic.example/":
			panic("unexpected")
		case "", "ftp://x":
			return nil, resolver.ErrInvalidURL
		}
		return nil, errors.New("unexpected input " + raw)
	}), Options{}).Handler()
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, ResolveResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp ResolveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json body %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestResolveEndpoint(t *testing.T) {
	h := newTestHandler()

	tests := []struct {
		name     string
		path     string
		body     string
		status   int
		expected ResolveResponse
	}{
		{
			name:   "success",
			path:   "/resolve",
			body:   `{"url":"somehost.com/redirect.php?x=1"}`,
			status: http.StatusOK,
			expected: ResolveResponse{
				Success:     true,
				EmbedURL:    "https://mixdrop.co/e/abc987",
				Provider:    "mixdrop",
				ResolvedURL: "https://mixdrop.co/f/abc987",
			},
		},
		{
			name:   "unknown provider on root path",
			path:   "/",
			body:   `{"url":"https://wrapper.example/player"}`,
			status: http.StatusOK,
			expected: ResolveResponse{
				Success:     true,
				EmbedURL:    "https://wrapper.example/player/xyz",
				Provider:    "unknown",
				ResolvedURL: "https://wrapper.example/player",
			},
		},
		{
			name:     "not embeddable",
			path:     "/resolve",
			body:     `{"url":"https://plain.example/"}`,
			status:   http.StatusOK,
			expected: ResolveResponse{Error: MsgNotEmbeddable, ResolvedURL: "https://plain.example/landing"},
		},
		{
			name:     "empty url",
			path:     "/resolve",
			body:     `{"url":""}`,
			status:   http.StatusBadRequest,
			expected: ResolveResponse{Error: MsgInvalidURL},
		},
		{
			name:     "malformed json",
			path:     "/resolve",
			body:     `{"url":`,
			status:   http.StatusBadRequest,
			expected: ResolveResponse{Error: MsgInvalidURL},
		},
		{
			name:     "fetch failure",
			path:     "/resolve",
			body:     `{"url":"https://down.example/"}`,
			status:   http.StatusInternalServerError,
			expected: ResolveResponse{Error: "resolve stage=fetch url=https://down.example/: dial tcp: connection refused"},
		},
		{
			name:     "panic",
			path:     "/resolve",
			body:     `{"url":"https://panic.example/"}`,
			status:   http.StatusInternalServerError,
			expected: ResolveResponse{Error: "panic: unexpected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := post(t, h, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d (%s)", tt.status, rec.Code, rec.Body.String())
			}
			if resp != tt.expected {
				t.Errorf("\nExpected: %+v\nGot:      %+v", tt.expected, resp)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("expected CORS origin *, got %q", got)
			}
			if rec.Header().Get(requestIDHeader) == "" {
				t.Error("expected request id header")
			}
		})
	}
}

func TestPreflight(t *testing.T) {
	h := newTestHandler()
	for _, path := range []string{"/", "/resolve", "/anything"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, path, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("%s: expected empty body, got %q", path, rec.Body.String())
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "authorization, x-client-info, apikey, content-type" {
			t.Errorf("%s: unexpected allow headers %q", path, got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
			t.Errorf("%s: unexpected allow methods %q", path, got)
		}
	}
}

func TestRequestIDPropagated(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler()
	post(t, h, "/resolve", `{"url":"somehost.com/redirect.php?x=1"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "vembed_http_requests_total") {
		t.Error("expected http request metrics to be exposed")
	}
}
