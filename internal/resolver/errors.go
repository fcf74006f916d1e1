package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned before any network access for empty or non-http(s) input.
	ErrInvalidURL = errors.New("invalid url")
	// ErrNotEmbeddable means the URL was reachable but nothing playable was found.
	ErrNotEmbeddable = errors.New("no embeddable url found")
)

// Error records which step of a resolution failed.
type Error struct {
	Stage       string // "fetch" or "scan"
	URL         string
	ResolvedURL string // landed URL, empty if the request never completed
	Err         error
}

func (e *Error) Error() string {
	if e.ResolvedURL != "" && e.ResolvedURL != e.URL {
		return fmt.Sprintf("resolve stage=%s url=%s landed=%s: %v", e.Stage, e.URL, e.ResolvedURL, e.Err)
	}
	return fmt.Sprintf("resolve stage=%s url=%s: %v", e.Stage, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusError is returned by fetchers for responses with status >= 400.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// ResolvedURLOf extracts the landed URL from a resolution error, if any.
func ResolvedURLOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.ResolvedURL
	}
	return ""
}
