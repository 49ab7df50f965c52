package completion

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GoSim-25-26J-441/toolsmith-backend/config"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/logging"
)

const defaultProviderTTL = 15 * time.Second

// Resolver returns the provider for one call: the highest active version in
// the durable store, or the env-configured fallback. Lookups are cached for a
// short TTL so a new version takes effect without a restart.
type Resolver struct {
	source   ProviderSource
	fallback Provider
	ttl      time.Duration
	now      func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	cached  *Provider
	fetched time.Time
}

func NewResolver(source ProviderSource, cfg config.CompletionConfig) *Resolver {
	return &Resolver{
		source: source,
		fallback: Provider{
			Name:    "env",
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		},
		ttl: defaultProviderTTL,
		now: time.Now,
	}
}

// Resolve serves the cached provider while fresh. Concurrent callers that
// find it stale share a single store lookup, run outside the lock.
func (r *Resolver) Resolve(ctx context.Context) Provider {
	r.mu.Lock()
	cached, fetched := r.cached, r.fetched
	r.mu.Unlock()

	if cached != nil && r.now().Sub(fetched) < r.ttl {
		return r.merge(*cached)
	}
	if r.source == nil {
		return r.fallback
	}

	v, err, _ := r.group.Do("provider", func() (any, error) {
		p, err := r.source.ActiveProvider(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cached = p
		r.fetched = r.now()
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		// keep serving the last known provider
		logging.FromContext(ctx).Warn("completion provider lookup failed", zap.Error(err))
		if cached != nil {
			return r.merge(*cached)
		}
		return r.fallback
	}
	if p, _ := v.(*Provider); p != nil {
		return r.merge(*p)
	}
	return r.fallback
}

// merge fills unset provider attributes from the env fallback.
func (r *Resolver) merge(p Provider) Provider {
	if p.BaseURL == "" {
		p.BaseURL = r.fallback.BaseURL
	}
	if p.Model == "" {
		p.Model = r.fallback.Model
	}
	if p.APIKey == "" {
		p.APIKey = r.fallback.APIKey
	}
	if p.Timeout <= 0 {
		p.Timeout = r.fallback.Timeout
	}
	return p
}
