package health

import (
	"context"
	"fmt"
	"time"
)

// JSONCache is the subset of internal/cache.Cache the health cache needs.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

const defaultTTL = 5 * time.Second

// CachedProvider wraps GetSourceHealth/GetAllSourceHealth with an optional
// Redis-backed short-TTL cache, keyed "health:<source_id>" under the
// cache's own "hardstop:" prefix. The cache wraps the repo query only —
// ComputeScore's math runs identically whether or not a cache is present.
// Nil Cache disables caching (local-first default).
type CachedProvider struct {
	Store Store
	Cache JSONCache
	TTL   time.Duration
}

func (p *CachedProvider) ttl() time.Duration {
	if p.TTL <= 0 {
		return defaultTTL
	}
	return p.TTL
}

func healthCacheKey(sourceID string) string {
	return fmt.Sprintf("health:%s", sourceID)
}

// GetSourceHealth serves from cache on a hit; on a miss (or when caching is
// disabled) it computes fresh and, if a cache is configured, populates it.
func (p *CachedProvider) GetSourceHealth(ctx context.Context, sourceID string, lookbackN, staleThresholdHours int, nowUTC time.Time) (SourceHealth, error) {
	if p.Cache != nil {
		var cached SourceHealth
		hit, err := p.Cache.GetJSON(ctx, healthCacheKey(sourceID), &cached)
		if err == nil && hit {
			return cached, nil
		}
	}

	h, err := GetSourceHealth(ctx, p.Store, sourceID, lookbackN, staleThresholdHours, nowUTC)
	if err != nil {
		return SourceHealth{}, err
	}

	if p.Cache != nil {
		_ = p.Cache.SetJSON(ctx, healthCacheKey(sourceID), h, p.ttl())
	}
	return h, nil
}

// GetAllSourceHealth fetches each source's health independently through
// GetSourceHealth, so per-source cache hits/misses are independent.
func (p *CachedProvider) GetAllSourceHealth(ctx context.Context, sourceIDs []string, lookbackN, staleThresholdHours int, nowUTC time.Time) ([]SourceHealth, error) {
	ids := sourceIDs
	if ids == nil {
		var err error
		ids, err = p.Store.ListSourceIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing sources: %w", err)
		}
	}

	out := make([]SourceHealth, 0, len(ids))
	for _, id := range ids {
		h, err := p.GetSourceHealth(ctx, id, lookbackN, staleThresholdHours, nowUTC)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
