package providers

type MixDrop struct {
	rule pathRule
}

func (m *MixDrop) Tag() Tag {
	return Mixdrop
}

func (m *MixDrop) SupportsHost(host string) bool {
	return hostContainsAny(host, []string{"mixdrop", "mixdrp", "mxdrop"})
}

// EmbedPath handles "/f/<id>" file pages.
func (m *MixDrop) EmbedPath(path string) (string, bool) {
	return m.rule.rewrite(path)
}

func init() {
	Register(&MixDrop{rule: newPathRule("f")})
}
