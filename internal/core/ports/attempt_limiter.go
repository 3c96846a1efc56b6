package ports

import "context"

// AttemptLimiter bounds credential attempts per key.
type AttemptLimiter interface {
	// Hit atomically counts one attempt for key and reports whether it is
	// still within the limit.
	Hit(ctx context.Context, key string) (bool, error)
	// Reset clears the attempts recorded for key.
	Reset(ctx context.Context, key string) error
}
