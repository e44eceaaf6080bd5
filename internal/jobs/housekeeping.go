package jobs

import (
	"context"
	"fmt"
	"time"

	"courier-dispatch/internal/logx"
)

// RecordPurger drops terminal assignment records.
type RecordPurger interface {
	PurgeTerminal(ctx context.Context, before time.Time) (int, error)
}

// ChannelPurger forgets closed or idle tracking channels.
type ChannelPurger interface {
	PurgeClosed(before time.Time) int
}

// Sweeper evicts idle rate limiter buckets.
type Sweeper interface {
	Sweep() int
}

// Expirer fails dispatches that ran past their deadline.
type Expirer interface {
	ExpireOverdue(ctx context.Context, maxDuration time.Duration) (int, error)
}

// Retention removes finished state older than Retention. Channels and
// Limiter may be nil.
type Retention struct {
	Records   RecordPurger
	Channels  ChannelPurger
	Limiter   Sweeper
	Retention time.Duration
	Logger    logx.Logger
	Now       func() time.Time
}

// Run performs one retention pass.
func (j Retention) Run(ctx context.Context) error {
	if j.Retention <= 0 {
		return nil
	}
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now()
	}
	before := now.Add(-j.Retention)

	records, err := j.Records.PurgeTerminal(ctx, before)
	if err != nil {
		return fmt.Errorf("purge terminal records: %w", err)
	}
	channels := 0
	if j.Channels != nil {
		channels = j.Channels.PurgeClosed(before)
	}
	buckets := 0
	if j.Limiter != nil {
		buckets = j.Limiter.Sweep()
	}

	if records+channels+buckets > 0 {
		logx.OrNop(j.Logger).Info("retention pass",
			logx.Int("records", records),
			logx.Int("channels", channels),
			logx.Int("buckets", buckets),
		)
	}
	return nil
}

// Deadline fails active dispatches older than MaxDuration.
type Deadline struct {
	Dispatches  Expirer
	MaxDuration time.Duration
	Logger      logx.Logger
}

// Run performs one deadline pass. A zero MaxDuration disables it.
func (j Deadline) Run(ctx context.Context) error {
	if j.MaxDuration <= 0 {
		return nil
	}
	n, err := j.Dispatches.ExpireOverdue(ctx, j.MaxDuration)
	if n > 0 {
		logx.OrNop(j.Logger).Info("overdue dispatches failed", logx.Int("count", n))
	}
	if err != nil {
		return fmt.Errorf("expire overdue dispatches: %w", err)
	}
	return nil
}
