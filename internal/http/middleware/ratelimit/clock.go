package ratelimit

import "time"

// Clock tells the limiter what time it is.
type Clock interface {
	Now() time.Time
}

// ClockFunc lets a plain function such as time.Now serve as a Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// RealClock reads the wall clock. It is used when no clock is given.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }
