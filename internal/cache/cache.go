// Package cache stores successful embed resolutions keyed by normalized input URL.
// Failures are never stored.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bugmaschine/vembed/internal/providers"
	"github.com/bugmaschine/vembed/internal/resolver"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Entry struct {
	EmbedURL    string        `json:"embedUrl"`
	Provider    providers.Tag `json:"provider"`
	ResolvedURL string        `json:"resolvedUrl,omitempty"`
}

func EntryFromResult(r *resolver.Result) Entry {
	return Entry{EmbedURL: r.EmbedURL, Provider: r.Provider, ResolvedURL: r.ResolvedURL}
}

func (e Entry) Result() *resolver.Result {
	return &resolver.Result{EmbedURL: e.EmbedURL, Provider: e.Provider, ResolvedURL: e.ResolvedURL}
}

// Store is implemented by SessionStore, LRUStore and RedisStore.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
}

// SessionStore is an unbounded map that lives as long as its owner.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewSessionStore() *SessionStore {
	return &SessionStore{entries: make(map[string]Entry)}
}

func (s *SessionStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *SessionStore) Set(_ context.Context, key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	return nil
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

const (
	DefaultLRUSize = 4096
	DefaultTTL     = 6 * time.Hour
)

// LRUStore is a bounded in-process store whose entries expire after ttl.
type LRUStore struct {
	lru *expirable.LRU[string, Entry]
}

func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	if size <= 0 {
		size = DefaultLRUSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LRUStore{lru: expirable.NewLRU[string, Entry](size, nil, ttl)}
}

func (s *LRUStore) Get(_ context.Context, key string) (Entry, bool, error) {
	e, ok := s.lru.Get(key)
	return e, ok, nil
}

func (s *LRUStore) Set(_ context.Context, key string, e Entry) error {
	s.lru.Add(key, e)
	return nil
}

func (s *LRUStore) Len() int {
	return s.lru.Len()
}
