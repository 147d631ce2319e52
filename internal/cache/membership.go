package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyvend/keyvend/internal/entitlement"
	"github.com/keyvend/keyvend/internal/metrics"
)

const (
	// membershipCachePrefix is the Redis key prefix for membership status.
	membershipCachePrefix = "membership:"
	// DefaultMembershipTTL bounds how stale a cached membership may be.
	DefaultMembershipTTL = 5 * time.Minute
)

// CachedOracle wraps a membership oracle with a Redis read-through
// cache. Only successful lookups are cached; errors always fall
// through to the underlying oracle on the next call.
type CachedOracle struct {
	oracle  entitlement.MembershipOracle
	cache   *Cache
	ttl     time.Duration
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewCachedOracle creates a caching decorator around an oracle.
func NewCachedOracle(oracle entitlement.MembershipOracle, cache *Cache, ttl time.Duration, logger *slog.Logger, recorder metrics.Recorder) *CachedOracle {
	if ttl <= 0 {
		ttl = DefaultMembershipTTL
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CachedOracle{
		oracle:  oracle,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With("component", "cache.membership"),
		metrics: recorder,
	}
}

// ChatMemberStatus implements entitlement.MembershipOracle.
func (o *CachedOracle) ChatMemberStatus(ctx context.Context, communityID, userID int64) (entitlement.MembershipStatus, error) {
	key := membershipKey(communityID, userID)

	cached, err := o.cache.client.Get(ctx, key).Result()
	if err == nil && cached != "" {
		o.metrics.IncMembershipCacheHit()
		return entitlement.MembershipStatus(cached), nil
	}
	o.metrics.IncMembershipCacheMiss()

	status, lookupErr := o.oracle.ChatMemberStatus(ctx, communityID, userID)
	if lookupErr != nil {
		return "", lookupErr
	}

	if err := o.cache.client.Set(ctx, key, string(status), o.ttl).Err(); err != nil {
		// A write failure only costs a future cache miss.
		o.logger.Warn("failed to cache membership status", "key", key, "error", err)
	}
	return status, nil
}

func membershipKey(communityID, userID int64) string {
	return fmt.Sprintf("%s%d:%d", membershipCachePrefix, communityID, userID)
}
