package providers

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Normalize trims raw and makes sure it carries an http(s) scheme.
// Empty input stays empty.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	return "https://" + s
}

// IsValidURL reports whether raw, once normalized, is an absolute http(s) URL with a host.
func IsValidURL(raw string) bool {
	_, ok := parseNormalized(raw)
	return ok
}

func parseNormalized(raw string) (*url.URL, bool) {
	s := Normalize(raw)
	if s == "" {
		return nil, false
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Hostname() == "" {
		return nil, false
	}
	// "https://" prepended to another scheme ("ftp://x") parses as host "ftp:"
	if strings.HasSuffix(u.Host, ":") {
		return nil, false
	}
	return u, true
}

// Classify returns the provider owning the URL's hostname, or Unknown.
func Classify(rawURL string) Tag {
	u, ok := parseNormalized(rawURL)
	if !ok {
		return Unknown
	}
	if p := providerForHost(strings.ToLower(u.Hostname())); p != nil {
		return p.Tag()
	}
	return Unknown
}

// ToEmbedURL rewrites a known provider page URL into its embed-player URL on the
// same origin. URLs that already use the embed path are returned as normalized.
// ok is false for unknown providers and unrecognised paths.
func ToEmbedURL(rawURL string) (string, bool) {
	normalized := Normalize(rawURL)
	u, ok := parseNormalized(normalized)
	if !ok {
		return "", false
	}
	p := providerForHost(strings.ToLower(u.Hostname()))
	if p == nil {
		return "", false
	}
	path, ok := p.EmbedPath(u.Path)
	if !ok {
		return "", false
	}
	if path == u.Path {
		return normalized, true
	}
	return u.Scheme + "://" + u.Host + path, true
}

var wrapperPathRe = regexp.MustCompile(`^/(?:embed|player|v|watch)/`)

// Rules configures the redirector heuristic.
type Rules struct {
	// RedirectorSegments are matched case-insensitively against the URL path.
	RedirectorSegments []string
	// WrapperHosts are registrable domains (example.com) that wrap provider
	// players behind their own embed pages.
	WrapperHosts []string
}

var DefaultRules = Rules{
	RedirectorSegments: []string{"redirect.php", "redir.php", "/out.php", "/go.php"},
}

// ShouldResolveRemotely uses DefaultRules.
func ShouldResolveRemotely(rawURL string) bool {
	return DefaultRules.ShouldResolveRemotely(rawURL)
}

// ShouldResolveRemotely reports whether rawURL looks like a redirector that only a
// network round-trip can turn into a provider URL.
func (r Rules) ShouldResolveRemotely(rawURL string) bool {
	u, ok := parseNormalized(rawURL)
	if !ok {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, seg := range r.RedirectorSegments {
		if seg != "" && strings.Contains(path, strings.ToLower(seg)) {
			return true
		}
	}

	if len(r.WrapperHosts) == 0 || !wrapperPathRe.MatchString(path) {
		return false
	}
	domain := registrableDomain(u.Hostname())
	for _, h := range r.WrapperHosts {
		if strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(h), "www."), domain) {
			return true
		}
	}
	return false
}

func registrableDomain(host string) string {
	host = strings.ToLower(host)
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// localhost, bare IPs
		return host
	}
	return domain
}
