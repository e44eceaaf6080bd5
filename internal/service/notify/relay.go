// Package notify is the boundary to the notification layer: dispatch and
// tracking queue outward events here without blocking, and a single worker
// hands them to the configured publishers in order.
package notify

import (
	"context"
	"errors"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// ErrQueueFull is returned by Notify when the event had to be dropped.
var ErrQueueFull = errors.New("notify: event queue full")

// DefaultQueueSize is used when no queue size is configured.
const DefaultQueueSize = 1024

const drainTimeout = 5 * time.Second

// Publisher delivers one event to one destination.
type Publisher interface {
	Publish(ctx context.Context, ev domain.DispatchEvent) error
}

type counter interface {
	Inc()
}

// Target is a named publisher.
type Target struct {
	Name      string
	Publisher Publisher
}

// Metrics are optional counters updated by the relay.
type Metrics struct {
	Published counter
	Failed    counter
	Dropped   counter
}

// Relay is a bounded FIFO of outward events.
type Relay struct {
	logger  logx.Logger
	queue   chan domain.DispatchEvent
	targets []Target
	metrics Metrics
}

// NewRelay creates a relay publishing to targets. Targets with a nil
// publisher are skipped.
func NewRelay(logger logx.Logger, size int, m Metrics, targets ...Target) *Relay {
	if size <= 0 {
		size = DefaultQueueSize
	}
	r := &Relay{
		logger:  logx.OrNop(logger).With(logx.Component("notify")),
		queue:   make(chan domain.DispatchEvent, size),
		metrics: m,
	}
	for _, t := range targets {
		if t.Publisher != nil {
			r.targets = append(r.targets, t)
		}
	}
	return r
}

// Notify queues ev. It never blocks.
func (r *Relay) Notify(_ context.Context, ev domain.DispatchEvent) error {
	select {
	case r.queue <- ev:
		return nil
	default:
		if r.metrics.Dropped != nil {
			r.metrics.Dropped.Inc()
		}
		r.logger.Warn("event dropped",
			logx.String("type", string(ev.Type)),
			logx.String("order_id", ev.OrderID),
		)
		return ErrQueueFull
	}
}

// Len returns the number of queued events.
func (r *Relay) Len() int { return len(r.queue) }

// Run publishes queued events until ctx is cancelled, then drains what is
// left within a bounded time.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("relay started", logx.Int("targets", len(r.targets)))
	for {
		select {
		case <-ctx.Done():
			r.drain(ctx)
			return nil
		case ev := <-r.queue:
			r.publish(ctx, ev)
		}
	}
}

func (r *Relay) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), drainTimeout)
	defer cancel()

	n := 0
	for {
		select {
		case ev := <-r.queue:
			if ctx.Err() != nil {
				n++
				continue
			}
			r.publish(ctx, ev)
		default:
			if n > 0 {
				r.logger.Warn("relay stopped with unpublished events", logx.Int("lost", n))
			}
			r.logger.Info("relay stopped")
			return
		}
	}
}

func (r *Relay) publish(ctx context.Context, ev domain.DispatchEvent) {
	for _, t := range r.targets {
		if err := t.Publisher.Publish(ctx, ev); err != nil {
			if r.metrics.Failed != nil {
				r.metrics.Failed.Inc()
			}
			r.logger.Error("event publish failed",
				logx.String("publisher", t.Name),
				logx.String("type", string(ev.Type)),
				logx.String("order_id", ev.OrderID),
				logx.String("event_id", ev.ID),
				logx.Err(err),
			)
			continue
		}
		if r.metrics.Published != nil {
			r.metrics.Published.Inc()
		}
	}
}
