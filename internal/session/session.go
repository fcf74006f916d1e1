// Package session binds a changing input URL to a playable embed URL, the way a
// player component does for the lifetime of a page session.
//
// A Session owns the memo of successful remote resolutions. Each Binding tracks one
// input: the last Set wins, and results of superseded resolutions are dropped.
package session

import (
	"context"
	"sync"

	"github.com/bugmaschine/vembed/internal/cache"
	"github.com/bugmaschine/vembed/internal/providers"
	"github.com/bugmaschine/vembed/internal/resolver"
	"github.com/bugmaschine/vembed/pkg/logger"
)

// Remote is implemented by *resolver.Resolver, *service.Service and *client.Client.
type Remote interface {
	Resolve(ctx context.Context, raw string) (*resolver.Result, error)
}

type State struct {
	// URL is the best playable URL known so far; it falls back to the local guess.
	URL       string
	IsLoading bool
	Err       error
}

type Option func(*Session)

// WithStore replaces the default session map.
func WithStore(s cache.Store) Option {
	return func(sess *Session) { sess.store = s }
}

// WithRules replaces the redirector heuristic.
func WithRules(r providers.Rules) Option {
	return func(sess *Session) { sess.rules = r }
}

type Session struct {
	remote Remote
	store  cache.Store
	rules  providers.Rules
}

func New(remote Remote, opts ...Option) *Session {
	s := &Session{remote: remote, store: cache.NewSessionStore(), rules: providers.DefaultRules}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Resolve is the blocking form of a binding: the local rewrite when no network is
// needed, then the session memo, then one remote call whose success is memoized.
// Inputs that need no remote call come back as StageLocal results, even when no
// provider matched.
func (s *Session) Resolve(ctx context.Context, raw string) (*resolver.Result, error) {
	key := providers.Normalize(raw)
	if !providers.IsValidURL(key) {
		return nil, resolver.ErrInvalidURL
	}
	if !s.rules.ShouldResolveRemotely(key) {
		local := localURL(key)
		return &resolver.Result{
			EmbedURL:    local,
			Provider:    providers.Classify(local),
			ResolvedURL: key,
			Stage:       resolver.StageLocal,
		}, nil
	}
	if e, ok := s.cached(ctx, key); ok {
		return e.Result(), nil
	}
	res, err := s.remote.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, key, res)
	return res, nil
}

// localURL is the best guess without network: the provider rewrite or key itself.
func localURL(key string) string {
	if embed, ok := providers.ToEmbedURL(key); ok {
		return embed
	}
	return key
}

func (s *Session) cached(ctx context.Context, key string) (cache.Entry, bool) {
	e, ok, err := s.store.Get(ctx, key)
	if err != nil {
		logger.FromContext(ctx).Warn("session cache lookup failed", "url", key, "error", err)
		return cache.Entry{}, false
	}
	return e, ok
}

func (s *Session) remember(ctx context.Context, key string, res *resolver.Result) {
	if err := s.store.Set(context.WithoutCancel(ctx), key, cache.EntryFromResult(res)); err != nil {
		logger.FromContext(ctx).Warn("session cache write failed", "url", key, "error", err)
	}
}

// Bind creates a binding. onChange, if set, is called with every new state from
// the goroutine that produced it. It must not call back into the Binding.
func (s *Session) Bind(onChange func(State)) *Binding {
	return &Binding{session: s, onChange: onChange}
}

type Binding struct {
	session  *Session
	onChange func(State)

	mu       sync.Mutex
	notify   sync.Mutex
	state    State
	gen      uint64
	key      string
	inflight bool
	cancel   context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

func (b *Binding) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Set changes the bound input. The returned state already reflects the local
// rewrite or a cached remote result; a remote resolution, if needed, runs in the
// background and reports through onChange.
func (b *Binding) Set(raw string) State {
	b.mu.Lock()
	if b.closed {
		st := b.state
		b.mu.Unlock()
		return st
	}

	key := providers.Normalize(raw)
	if key == b.key && b.inflight {
		st := b.state
		b.mu.Unlock()
		return st
	}

	b.gen++
	gen := b.gen
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.key = key
	b.inflight = false

	local := localURL(key)
	if key == "" || !b.session.rules.ShouldResolveRemotely(key) {
		return b.apply(State{URL: local})
	}

	if e, ok := b.session.cached(context.Background(), key); ok {
		return b.apply(State{URL: e.EmbedURL})
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.inflight = true
	b.wg.Add(1)
	go b.resolve(ctx, gen, key, local)

	return b.apply(State{URL: local, IsLoading: true})
}

// apply stores st, releases the lock and notifies. Notifications are delivered in
// the order states were applied.
func (b *Binding) apply(st State) State {
	b.state = st
	b.notify.Lock()
	b.mu.Unlock()
	defer b.notify.Unlock()
	if b.onChange != nil {
		b.onChange(st)
	}
	return st
}

func (b *Binding) resolve(ctx context.Context, gen uint64, key, local string) {
	defer b.wg.Done()

	res, err := b.session.remote.Resolve(ctx, key)

	b.mu.Lock()
	if gen != b.gen || b.closed {
		b.mu.Unlock()
		logger.FromContext(ctx).Debug("dropping superseded resolution", "url", key)
		return
	}
	b.inflight = false
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}

	if err != nil {
		logger.FromContext(ctx).Debug("remote resolution failed, using local url", "url", key, "error", err)
		b.apply(State{URL: local, Err: err})
		return
	}
	b.session.remember(ctx, key, res)
	b.apply(State{URL: res.EmbedURL})
}

// Close cancels any in-flight resolution; later results are discarded.
func (b *Binding) Close() {
	b.mu.Lock()
	b.closed = true
	b.gen++
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.mu.Unlock()
}

// wait blocks until background resolutions have finished.
func (b *Binding) wait() {
	b.wg.Wait()
}
