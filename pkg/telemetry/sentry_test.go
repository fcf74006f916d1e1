package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
)

func TestRecovererHandsPanicToCallback(t *testing.T) {
	var got error
	h := Recoverer(func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusInternalServerError)
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resolve", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got == nil || got.Error() != "panic: boom" {
		t.Fatalf("unexpected error %v", got)
	}
}

func TestRecovererPutsHubOnContext(t *testing.T) {
	var hub *sentry.Hub
	h := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub = sentry.GetHubFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if hub == nil {
		t.Fatal("expected a request hub")
	}
}

func TestInitSentryDisabled(t *testing.T) {
	if err := InitSentry("", "", "dev"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// no client configured, must not panic
	CaptureError(t.Context(), errors.New("x"), map[string]string{"stage": "fetch"})
}

func TestScrub(t *testing.T) {
	ev := &sentry.Event{
		User:    sentry.User{IPAddress: "10.0.0.1"},
		Request: &sentry.Request{Headers: map[string]string{"Authorization": "Bearer t", "Content-Type": "application/json"}},
	}
	ev = scrub(ev)
	if ev.User.IPAddress != "" {
		t.Error("expected ip to be removed")
	}
	if ev.Request.Headers["Authorization"] != "[redacted]" || ev.Request.Headers["Content-Type"] != "application/json" {
		t.Errorf("unexpected headers %v", ev.Request.Headers)
	}
}
