package resolver

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/grafov/m3u8"
)

var (
	locationAssignRe  = regexp.MustCompile(`(?:window\.)?location(?:\.href)?\s*=\s*(?:'([^']+)'|"([^"]+)")`)
	locationReplaceRe = regexp.MustCompile(`location\.(?:replace|assign)\(\s*(?:'([^']+)'|"([^"]+)")\s*\)`)
	refreshURLRe      = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'";\s]+)`)
)

// candidate is a player reference found in a landed page.
type candidate struct {
	URL   string
	Stage Stage
}

// findPlayer returns the first usable <iframe src>, falling back to the first
// <source src>. Non-http references (about:blank, javascript:, data:) are skipped.
func findPlayer(doc *goquery.Document, base *url.URL) (candidate, bool) {
	for _, sel := range []struct {
		query string
		stage Stage
	}{
		{"iframe[src]", StageIframe},
		{"source[src]", StageSource},
	} {
		var found string
		doc.Find(sel.query).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src, _ := s.Attr("src")
			if abs, ok := resolveRef(base, src); ok {
				found = abs
				return false
			}
			return true
		})
		if found != "" {
			return candidate{URL: found, Stage: sel.stage}, true
		}
	}
	return candidate{}, false
}

// findClientRedirect looks for a meta refresh or a scripted location change.
func findClientRedirect(doc *goquery.Document, base *url.URL) (string, bool) {
	var target string
	doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "refresh") {
			return true
		}
		content, _ := s.Attr("content")
		if m := refreshURLRe.FindStringSubmatch(content); len(m) > 1 {
			if abs, ok := resolveRef(base, m[1]); ok {
				target = abs
				return false
			}
		}
		return true
	})
	if target != "" {
		return target, true
	}

	scripts := doc.Find("script").Text()
	for _, re := range []*regexp.Regexp{locationReplaceRe, locationAssignRe} {
		for _, m := range re.FindAllStringSubmatch(scripts, -1) {
			ref := m[1]
			if ref == "" {
				ref = m[2]
			}
			if abs, ok := resolveRef(base, ref); ok {
				return abs, true
			}
		}
	}
	return "", false
}

func resolveRef(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	return abs.String(), true
}

// isValidPlaylist reports whether body decodes as a master or media HLS playlist.
func isValidPlaylist(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	_, _, err := m3u8.DecodeFrom(bytes.NewReader(body), true)
	return err == nil
}
