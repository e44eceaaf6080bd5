package tracking

import (
	"context"
	"sync"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// Subscription is one sink attached to one order.
type Subscription struct {
	id      string
	orderID string

	b    *Broadcaster
	oc   *orderChannel
	sink Sink
	ch   chan domain.TrackingEvent

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// OrderID returns the order the subscription follows.
func (s *Subscription) OrderID() string { return s.orderID }

// Done is closed once the sink has been closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Unsubscribe detaches the sink. Events still queued are discarded.
// Safe to call multiple times and from inside Sink.Deliver.
func (s *Subscription) Unsubscribe() {
	s.cancel()
	s.detach()
}

func (s *Subscription) detach() {
	s.oc.mu.Lock()
	delete(s.oc.subs, s.id)
	s.closeQueue()
	s.oc.mu.Unlock()
}

// closeQueue must be called with oc.mu held so that no publish races the close.
func (s *Subscription) closeQueue() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// offer queues ev without blocking. Called with oc.mu held.
func (s *Subscription) offer(ev domain.TrackingEvent) bool {
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *Subscription) run() {
	defer close(s.done)
	defer func() {
		if err := s.sink.Close(); err != nil {
			s.b.logger.Debug("sink close failed", logx.String("subscription_id", s.id), logx.Err(err))
		}
	}()

	for ev := range s.ch {
		if s.ctx.Err() != nil {
			continue
		}
		if err := s.sink.Deliver(s.ctx, ev); err != nil {
			if s.ctx.Err() == nil {
				inc(s.b.metrics.SinksDropped)
				s.b.dropped.Add(1)
				s.b.logger.Warn("sink delivery failed, unsubscribing",
					logx.String("order_id", s.orderID),
					logx.String("subscription_id", s.id),
					logx.Uint64("seq", ev.Seq),
					logx.Err(err),
				)
			}
			s.Unsubscribe()
		}
	}
	s.cancel()
}
