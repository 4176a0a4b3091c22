package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-integrations/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const integrationCacheKeyPrefix = "go-integrations::integration::v1"

// CachedIntegrationStore fronts the catalog with a read-through cache.
// Catalog rows change rarely and are read on every service operation, so
// they are the one store worth caching.
type CachedIntegrationStore struct {
	base  core.IntegrationStore
	cache repositorycache.CacheService
}

func NewCachedIntegrationStore(
	base core.IntegrationStore,
	cacheService repositorycache.CacheService,
) (*CachedIntegrationStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base integration store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: integration cache service is required")
	}
	return &CachedIntegrationStore{base: base, cache: cacheService}, nil
}

// IntegrationCacheKey returns the deterministic cache key contract for
// catalog reads: go-integrations::integration::v1::<key> with the key
// segment URL-path escaped after normalization.
func IntegrationCacheKey(key string) (string, error) {
	normalized := normalizeKey(key)
	if normalized == "" {
		return "", fmt.Errorf("sqlstore: integration key is required")
	}
	return strings.Join([]string{integrationCacheKeyPrefix, url.PathEscape(normalized)}, "::"), nil
}

func (s *CachedIntegrationStore) GetByKey(ctx context.Context, key string) (core.Integration, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	cacheKey, err := IntegrationCacheKey(key)
	if err != nil {
		return core.Integration{}, err
	}
	integration, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Integration, error) {
		return s.base.GetByKey(ctx, key)
	})
	if err != nil {
		return core.Integration{}, err
	}
	return integration, nil
}

// List always goes to the base store; the catalog listing is an operator
// surface and staleness there is worse than the extra query.
func (s *CachedIntegrationStore) List(ctx context.Context) ([]core.Integration, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	return s.base.List(ctx)
}

func (s *CachedIntegrationStore) Upsert(ctx context.Context, in core.UpsertIntegrationInput) (core.Integration, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	integration, err := s.base.Upsert(ctx, in)
	if err != nil {
		return core.Integration{}, err
	}
	cacheKey, err := IntegrationCacheKey(integration.Key)
	if err != nil {
		return core.Integration{}, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.Integration{}, err
	}
	return integration, nil
}

var _ core.IntegrationStore = (*CachedIntegrationStore)(nil)
