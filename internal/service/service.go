// Package service puts a result cache and duplicate suppression in front of the
// resolver for long-lived processes.
package service

import (
	"context"
	"errors"

	"github.com/bugmaschine/vembed/internal/cache"
	"github.com/bugmaschine/vembed/internal/metrics"
	"github.com/bugmaschine/vembed/internal/providers"
	"github.com/bugmaschine/vembed/internal/resolver"
	"github.com/bugmaschine/vembed/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// Resolver is satisfied by *resolver.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (*resolver.Result, error)
}

type Service struct {
	resolver Resolver
	store    cache.Store
	group    singleflight.Group
}

// New returns a Service. A nil store disables caching.
func New(r Resolver, store cache.Store) *Service {
	return &Service{resolver: r, store: store}
}

// Resolve answers from the cache when possible. Concurrent calls for the same
// normalized URL share one resolution; only successes are cached.
func (s *Service) Resolve(ctx context.Context, raw string) (*resolver.Result, error) {
	key := providers.Normalize(raw)
	if !providers.IsValidURL(key) {
		metrics.Resolutions.WithLabelValues(providers.Unknown.String(), "", metrics.OutcomeInvalid).Inc()
		return nil, resolver.ErrInvalidURL
	}
	log := logger.FromContext(ctx)

	// local rewrites need no network and are not worth a cache slot
	if _, ok := providers.ToEmbedURL(key); ok {
		res, err := s.resolver.Resolve(ctx, key)
		record(res, err)
		return res, err
	}

	if s.store != nil {
		e, ok, err := s.store.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("cache lookup failed", "url", key, "error", err)
			metrics.CacheLookups.WithLabelValues("error").Inc()
		case ok:
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return e.Result(), nil
		default:
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// detached so one caller going away does not fail the others
		bg := context.WithoutCancel(ctx)
		res, err := s.resolver.Resolve(bg, key)
		record(res, err)
		if err != nil {
			return nil, err
		}
		if s.store != nil {
			if err := s.store.Set(bg, key, cache.EntryFromResult(res)); err != nil {
				log.Warn("cache write failed", "url", key, "error", err)
			}
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Shared {
			log.Debug("resolution shared with concurrent request", "url", key)
		}
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*resolver.Result)
		return &res, nil
	}
}

func record(res *resolver.Result, err error) {
	switch {
	case err == nil:
		metrics.Resolutions.WithLabelValues(res.Provider.String(), string(res.Stage), metrics.OutcomeSuccess).Inc()
	case errors.Is(err, resolver.ErrInvalidURL):
		metrics.Resolutions.WithLabelValues(providers.Unknown.String(), "", metrics.OutcomeInvalid).Inc()
	case errors.Is(err, resolver.ErrNotEmbeddable):
		metrics.Resolutions.WithLabelValues(providers.Unknown.String(), "scan", metrics.OutcomeNotEmbeddable).Inc()
	default:
		metrics.Resolutions.WithLabelValues(providers.Unknown.String(), "fetch", metrics.OutcomeError).Inc()
	}
}
