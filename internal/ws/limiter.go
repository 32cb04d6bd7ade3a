package ws

import (
	"context"
	"fmt"
	"time"

	"signaling-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the per-identity device cap with the shared Redis
// concurrency scripts, so the cap holds across signaling instances.
type RedisLimiter struct {
	RDB   *redis.Client
	Limit int

	// TTL bounds how long a slot can leak after a crash. Long-lived
	// connections past the TTL simply fall out of the cap (fail open).
	TTL time.Duration
}

func capKey(identityID string) string {
	return fmt.Sprintf("signal:conncap:%s", identityID)
}

func (l *RedisLimiter) Acquire(ctx context.Context, identityID string) (bool, error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return utils.AcquireConcurrencyCap(ctx, l.RDB, capKey(identityID), l.Limit, ttl)
}

func (l *RedisLimiter) Release(ctx context.Context, identityID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.RDB, capKey(identityID))
}
