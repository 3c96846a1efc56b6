package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sirpyerre/realm-auth/internal/core/ports"
)

const (
	defaultMaxAttempts = 5
	defaultWindow      = 15 * time.Minute
	attemptKeyPrefix   = "attempts:"
)

// AttemptLimiter counts attempts per key in Redis. A counter lives for one
// window from its first attempt.
// Key format: attempts:<key>
type AttemptLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

var _ ports.AttemptLimiter = (*AttemptLimiter)(nil)

// NewAttemptLimiter creates an AttemptLimiter allowing maxAttempts attempts
// per window. Non-positive values fall back to the defaults.
func NewAttemptLimiter(client *redis.Client, maxAttempts int, window time.Duration) *AttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &AttemptLimiter{client: client, max: maxAttempts, window: window}
}

// Hit counts one attempt and reports whether it is within the limit. The
// increment and the window start run in one MULTI/EXEC, so concurrent
// callers each see their own count.
func (l *AttemptLimiter) Hit(ctx context.Context, key string) (bool, error) {
	k := l.key(key)
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("attempt record: %w", err)
	}
	return incr.Val() <= int64(l.max), nil
}

// Reset clears the counter for key.
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("attempt reset: %w", err)
	}
	return nil
}

func (l *AttemptLimiter) key(key string) string {
	return attemptKeyPrefix + key
}
