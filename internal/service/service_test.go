package service_test

import (
	"context"
	"encoding/json"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/access"
	"github.com/jeovahfialho/tradelog/internal/auth"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/internal/service"
	"github.com/jeovahfialho/tradelog/internal/storage/sqlite"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type env struct {
	store     *sqlite.Store
	cache     *memCache
	trades    *service.TradeService
	analytics *service.AnalyticsService
	auth      *service.AuthService
	ingestion *service.IngestionService
	admin     access.Principal
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cache := newMemCache()
	e := &env{
		store:     store,
		cache:     cache,
		trades:    service.NewTradeService(store, cache).WithClock(func() time.Time { return now }),
		analytics: service.NewAnalyticsService(store, cache),
		auth:      service.NewAuthService(store, cache, auth.NewTokenManager("test-secret", time.Hour)),
		ingestion: service.NewIngestionService(store, cache, 2, 2),
	}

	created, err := e.auth.EnsureAdmin(context.Background(), "admin@example.com", "admin", "admin")
	require.NoError(t, err)
	require.True(t, created)
	e.admin = e.principal(t, "admin@example.com")

	return e
}

func (e *env) principal(t *testing.T, email string) access.Principal {
	t.Helper()

	u, err := e.store.GetUserByEmail(context.Background(), email)
	require.NoError(t, err)
	return access.Principal{UserID: u.ID, Role: u.Role}
}

func (e *env) trader(t *testing.T, name string) access.Principal {
	t.Helper()

	u, err := e.auth.EnsureTrader(context.Background(), name+"@example.com", name, "secret")
	require.NoError(t, err)
	return access.Principal{UserID: u.ID, Role: u.Role}
}

func (e *env) seed(t *testing.T) {
	t.Helper()

	n, err := service.Seed(context.Background(), e.store, e.auth, now)
	require.NoError(t, err)
	require.Equal(t, int64(6), n)
}

// memCache is an in-process service.Cache storing JSON like the Redis one.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.entries[key]
	if !ok {
		return domain.NotFound("cache key", key)
	}
	return json.Unmarshal(data, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ ...time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *memCache) DeletePattern(_ context.Context, pattern string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for k := range c.entries {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

func (c *memCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	return ok
}

func userKey(id uuid.UUID) string {
	return service.CacheKeyPrefix + "user:" + id.String()
}
