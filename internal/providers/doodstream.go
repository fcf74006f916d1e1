package providers

type DoodStream struct {
	rule pathRule
}

func (d *DoodStream) Tag() Tag {
	return Doodstream
}

func (d *DoodStream) SupportsHost(host string) bool {
	hosts := []string{
		"dood", "ds2video", "ds2play", "d000d", "d0000d", "d0o0d", "do0od",
		"vidply", "do7go", "all3do", "doply",
	}
	return hostContainsAny(host, hosts)
}

// EmbedPath handles "/d/<id>" download pages.
func (d *DoodStream) EmbedPath(path string) (string, bool) {
	return d.rule.rewrite(path)
}

func init() {
	Register(&DoodStream{rule: newPathRule("d")})
}
