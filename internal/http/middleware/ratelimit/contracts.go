package ratelimit

import "time"

// Limiter is a rate limiter. When a key is refused, retryAfter tells how
// long until the next request may pass.
type Limiter interface {
	Allow(key string) (ok bool, retryAfter time.Duration)
}
