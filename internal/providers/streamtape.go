package providers

type StreamTape struct {
	rule pathRule
}

func (s *StreamTape) Tag() Tag {
	return Streamtape
}

func (s *StreamTape) SupportsHost(host string) bool {
	hosts := []string{
		"streamtape",
		"shavetape",
		"strtape",
		"stape.",
	}
	return hostContainsAny(host, hosts)
}

// EmbedPath handles "/v/<id>/<title>" video pages.
func (s *StreamTape) EmbedPath(path string) (string, bool) {
	return s.rule.rewrite(path)
}

func init() {
	Register(&StreamTape{rule: newPathRule("v")})
}
