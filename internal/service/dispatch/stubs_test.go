package dispatch_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/scheduler"
)

type timersStub struct {
	mu    sync.Mutex
	armed map[domain.OfferKey]time.Duration
	arms  []domain.OfferKey
}

func newTimers() *timersStub {
	return &timersStub{armed: make(map[domain.OfferKey]time.Duration)}
}

func (t *timersStub) Arm(key domain.OfferKey, d time.Duration) scheduler.TimerHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed[key] = d
	t.arms = append(t.arms, key)
	return scheduler.TimerHandle{Key: key}
}

func (t *timersStub) CancelKey(key domain.OfferKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.armed[key]
	delete(t.armed, key)
	return ok
}

func (t *timersStub) armedKeys() []domain.OfferKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.OfferKey, 0, len(t.armed))
	for k := range t.armed {
		out = append(out, k)
	}
	return out
}

func (t *timersStub) window(key domain.OfferKey) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.armed[key]
	return d, ok
}

type statusesStub struct {
	mu     sync.Mutex
	events []domain.StatusEvent
	err    error
}

func (s *statusesStub) PublishStatus(_ context.Context, ev domain.StatusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *statusesStub) statuses() []domain.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OrderStatus, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Status
	}
	return out
}

type notifierStub struct {
	mu     sync.Mutex
	events []domain.DispatchEvent
}

func (n *notifierStub) Notify(_ context.Context, ev domain.DispatchEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *notifierStub) ofType(t domain.DispatchEventType) []domain.DispatchEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.DispatchEvent
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (n *notifierStub) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type poolStub struct {
	mu   sync.Mutex
	busy []int64
	err  error
}

func (p *poolStub) MarkBusy(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = append(p.busy, id)
	return p.err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type counterStub struct{ n atomic.Int64 }

func (c *counterStub) Inc() { c.n.Add(1) }
