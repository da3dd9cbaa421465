package cache

import (
	"context"
	"time"
)

// Cache stores JSON-encoded values under string keys. A miss is reported
// as hit=false with a nil error; errors are reserved for backend failures.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
