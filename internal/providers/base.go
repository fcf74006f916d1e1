package providers

import (
	"fmt"
	"strings"
)

// Tag identifies a known video host. The zero value is Unknown.
type Tag int

const (
	Unknown Tag = iota
	Mixdrop
	Doodstream
	Streamtape
)

var tagNames = map[Tag]string{
	Unknown:    "unknown",
	Mixdrop:    "mixdrop",
	Doodstream: "doodstream",
	Streamtape: "streamtape",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return tagNames[Unknown]
}

func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(b []byte) error {
	tag, ok := ParseTag(string(b))
	if !ok {
		return fmt.Errorf("unknown provider tag %q", string(b))
	}
	*t = tag
	return nil
}

// ParseTag maps a provider name back to its Tag.
func ParseTag(s string) (Tag, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for tag, name := range tagNames {
		if name == s {
			return tag, true
		}
	}
	return Unknown, false
}

// Provider pairs a hostname predicate with a path rewrite rule.
type Provider interface {
	Tag() Tag
	// SupportsHost reports whether the lower-cased hostname belongs to this provider.
	SupportsHost(host string) bool
	// EmbedPath returns the embed-player path for a page path of this provider.
	EmbedPath(path string) (string, bool)
}

var registry []Provider

func Register(p Provider) {
	registry = append(registry, p)
}

func GetProviders() []Provider {
	return registry
}

func GetProviderByTag(tag Tag) Provider {
	for _, p := range registry {
		if p.Tag() == tag {
			return p
		}
	}
	return nil
}

// providerForHost returns the first registered provider matching host, or nil.
func providerForHost(host string) Provider {
	for _, p := range registry {
		if p.SupportsHost(host) {
			return p
		}
	}
	return nil
}
