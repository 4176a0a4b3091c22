package sqlstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-integrations/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubIntegrationStore struct {
	mu          sync.Mutex
	integration core.Integration
	getCalls    int
	upsertCalls int
}

func (s *stubIntegrationStore) GetByKey(_ context.Context, _ string) (core.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	return s.integration, nil
}

func (s *stubIntegrationStore) List(_ context.Context) ([]core.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []core.Integration{s.integration}, nil
}

func (s *stubIntegrationStore) Upsert(_ context.Context, in core.UpsertIntegrationInput) (core.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	s.integration.Key = normalizeKey(in.Key)
	s.integration.Name = in.Name
	s.integration.Enabled = in.Enabled
	return s.integration, nil
}

func newTestIntegrationCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedIntegrationStore_GetByKey_MissFetchThenHit(t *testing.T) {
	cacheService := newTestIntegrationCacheService(t)
	base := &stubIntegrationStore{
		integration: core.Integration{ID: "int_1", Key: "github", Name: "GitHub", Enabled: true},
	}

	store, err := NewCachedIntegrationStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached integration store: %v", err)
	}

	if _, err := store.GetByKey(context.Background(), "github"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected first get to fetch base store once, got %d", base.getCalls)
	}

	if _, err := store.GetByKey(context.Background(), "GitHub"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be cache hit, base get calls=%d", base.getCalls)
	}
}

func TestCachedIntegrationStore_Upsert_InvalidatesCachedKey(t *testing.T) {
	cacheService := newTestIntegrationCacheService(t)
	base := &stubIntegrationStore{
		integration: core.Integration{ID: "int_1", Key: "github", Name: "GitHub", Enabled: true},
	}

	store, err := NewCachedIntegrationStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached integration store: %v", err)
	}

	if _, err := store.GetByKey(context.Background(), "github"); err != nil {
		t.Fatalf("prime cache with get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected one base read after cache prime, got %d", base.getCalls)
	}

	if _, err := store.Upsert(context.Background(), core.UpsertIntegrationInput{
		Key:     "github",
		Name:    "GitHub Cloud",
		Enabled: false,
	}); err != nil {
		t.Fatalf("upsert through cached store: %v", err)
	}

	refreshed, err := store.GetByKey(context.Background(), "github")
	if err != nil {
		t.Fatalf("get after invalidation: %v", err)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected upsert to invalidate cached key, base get calls=%d", base.getCalls)
	}
	if refreshed.Name != "GitHub Cloud" {
		t.Fatalf("expected refreshed catalog entry, got %q", refreshed.Name)
	}
}

func TestIntegrationCacheKey_NormalizesAndEscapes(t *testing.T) {
	key, err := IntegrationCacheKey("  GitHub  ")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if key != "go-integrations::integration::v1::github" {
		t.Fatalf("unexpected cache key %q", key)
	}
	if _, err := IntegrationCacheKey("   "); err == nil {
		t.Fatal("blank key should fail")
	}
}
