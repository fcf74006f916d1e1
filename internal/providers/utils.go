package providers

import (
	"regexp"
	"strings"
)

var embedPathRe = regexp.MustCompile(`^/e/[A-Za-z0-9]+/?$`)

// hostContainsAny does brand-name substring matching so mirror domains
// (dood.to, dood.wf, ...) are recognised without listing every TLD.
func hostContainsAny(host string, needles []string) bool {
	host = strings.ToLower(host)
	for _, n := range needles {
		if strings.Contains(host, n) {
			return true
		}
	}
	return false
}

// pathRule rewrites "/<prefix>/<id>[/slug]" page paths to "/e/<id>".
type pathRule struct {
	page *regexp.Regexp
}

func newPathRule(prefixes ...string) pathRule {
	return pathRule{
		page: regexp.MustCompile(`^/(?:` + strings.Join(prefixes, "|") + `)/([A-Za-z0-9]+)(?:/[^/]*)?/?$`),
	}
}

func (r pathRule) rewrite(path string) (string, bool) {
	if embedPathRe.MatchString(path) {
		return path, true
	}
	matches := r.page.FindStringSubmatch(path)
	if len(matches) < 2 {
		return "", false
	}
	return "/e/" + matches[1], true
}
