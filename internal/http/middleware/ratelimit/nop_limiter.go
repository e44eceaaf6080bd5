package ratelimit

import "time"

// NopLimiter is a no-op limiter
type NopLimiter struct{}

// Allow always lets the request through
func (NopLimiter) Allow(string) (bool, time.Duration) { return true, 0 }
