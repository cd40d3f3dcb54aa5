package services

import (
	"context"
	"strings"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/AnshRaj112/tripjournal-backend/internal/metrics"
)

// CachedMetadataProvider memoises successful lookups in Redis. Any cache
// error falls through to the wrapped provider.
type CachedMetadataProvider struct {
	next  MetadataProvider
	cache *CacheService
	ttl   time.Duration
}

func NewCachedMetadataProvider(next MetadataProvider, ttl time.Duration) *CachedMetadataProvider {
	return &CachedMetadataProvider{next: next, cache: Cache, ttl: ttl}
}

func locationCacheKey(city, countryCode string) string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return CacheKey("location", norm(city)+"|"+norm(countryCode))
}

func (p *CachedMetadataProvider) Resolve(ctx context.Context, city, countryCode string) (*ResolvedLocation, error) {
	key := locationCacheKey(city, countryCode)

	var cached ResolvedLocation
	hit, err := p.cache.Get(ctx, key, &cached)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("location cache read failed")
	}
	if hit {
		metrics.ProviderRequests.WithLabelValues("cache_hit").Inc()
		return &cached, nil
	}

	res, err := p.next.Resolve(ctx, city, countryCode)
	if err != nil {
		return nil, err
	}
	if err := p.cache.SetWithTTL(ctx, key, res, p.ttl); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("location cache write failed")
	}
	return res, nil
}
