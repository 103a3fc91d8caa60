package ratelimit

import "context"

// Limit is expressed per minute; webhook endpoints are the only consumers
// and providers retry aggressively during incidents.
type Limit struct {
	RequestsPerMinute int
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit Limit) (bool, error)
	Reset(ctx context.Context, key string) error
}
