package service

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/readmit-risk-server/internal/domain"
)

const (
	defaultEnvironmentCacheSize = 256
	defaultEnvironmentCacheTTL  = 10 * time.Minute
)

type cachedEnvironment struct {
	factors  *domain.EnvironmentFactors
	cachedAt time.Time
}

// CachedEnvironmentProvider memoizes environment lookups per unit in an
// in-process LRU. Environmental covariates move slowly, so a short TTL cuts
// most upstream calls without going stale.
type CachedEnvironmentProvider struct {
	inner domain.EnvironmentProvider
	cache *lru.Cache
	ttl   time.Duration
	log   *logrus.Logger
}

// NewCachedEnvironmentProvider wraps a provider with an LRU memory tier.
// Size and ttl fall back to sensible defaults when non-positive.
func NewCachedEnvironmentProvider(inner domain.EnvironmentProvider, size int, ttl time.Duration, logger *logrus.Logger) (*CachedEnvironmentProvider, error) {
	if size <= 0 {
		size = defaultEnvironmentCacheSize
	}
	if ttl <= 0 {
		ttl = defaultEnvironmentCacheTTL
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedEnvironmentProvider{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger,
	}, nil
}

// Resolve returns cached factors for the unit when fresh, otherwise asks
// the inner provider and caches the result.
func (p *CachedEnvironmentProvider) Resolve(ctx context.Context, unit string) *domain.EnvironmentFactors {
	if entry, ok := p.cache.Get(unit); ok {
		cached := entry.(cachedEnvironment)
		if time.Since(cached.cachedAt) < p.ttl {
			p.log.WithField("unit", unit).Debug("Environment cache hit")
			return cached.factors
		}
		p.cache.Remove(unit)
	}

	factors := p.inner.Resolve(ctx, unit)
	p.cache.Add(unit, cachedEnvironment{factors: factors, cachedAt: time.Now()})
	return factors
}
