package cache

import (
	"context"
	"time"
)

// CounterStore keeps expiring counters used for request rate limiting.
type CounterStore interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	PurgeExpired(ctx context.Context) (int64, error)
}
