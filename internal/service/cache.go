package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/access"
	"github.com/jeovahfialho/tradelog/pkg/logger"
	"github.com/jeovahfialho/tradelog/pkg/metrics"
	"go.uber.org/zap"
)

const (
	CacheKeyPrefix  = "analytics:"
	keyAdminSummary = CacheKeyPrefix + "admin"
	keyTopTrades    = CacheKeyPrefix + "top"
	keyChartAll     = CacheKeyPrefix + "chart:all"
)

func userSummaryKey(id uuid.UUID) string {
	return CacheKeyPrefix + "user:" + id.String()
}

func chartKey(p access.Principal) string {
	if p.IsAdmin() {
		return keyChartAll
	}
	return CacheKeyPrefix + "chart:" + p.UserID.String()
}

// cacheGet reports whether dest was filled from the cache. Errors count as
// misses; the database stays authoritative.
func cacheGet(ctx context.Context, c Cache, key string, dest interface{}) bool {
	if c == nil {
		return false
	}
	if err := c.Get(ctx, key, dest); err != nil {
		metrics.RecordCacheMiss()
		return false
	}
	metrics.RecordCacheHit()
	return true
}

func cacheSet(ctx context.Context, c Cache, key string, value interface{}) {
	if c == nil {
		return
	}
	if err := c.Set(ctx, key, value); err != nil {
		logger.WithContext(ctx).Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidateAnalytics drops every cached result a change to owner's trades
// can affect: the owner's own views and all platform-wide views.
func invalidateAnalytics(ctx context.Context, c Cache, owners ...uuid.UUID) {
	if c == nil {
		return
	}

	keys := []string{keyAdminSummary, keyTopTrades, keyChartAll}
	for _, id := range owners {
		keys = append(keys, userSummaryKey(id), CacheKeyPrefix+"chart:"+id.String())
	}

	if err := c.Delete(ctx, keys...); err != nil {
		logger.WithContext(ctx).Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
