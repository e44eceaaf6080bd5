// Package scheduler fires one-shot offer expiration timers.
//
// Timers live in a single min-heap keyed by domain.OfferKey and are driven by
// one loop goroutine, so the number of in-flight offers does not translate
// into goroutines or runtime timers.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// Handler is invoked once for every timer that fires.
type Handler func(ctx context.Context, key domain.OfferKey) error

type counter interface {
	Inc()
}

// TimerHandle identifies one arming of a key. Re-arming the key invalidates
// older handles.
type TimerHandle struct {
	Key domain.OfferKey
	gen uint64
}

type entry struct {
	key   domain.OfferKey
	gen   uint64
	at    time.Time
	index int
}

// Scheduler is a delay queue of offer timers.
type Scheduler struct {
	logger logx.Logger
	fired  counter

	mu    sync.Mutex
	queue entryHeap
	byKey map[domain.OfferKey]*entry
	gen   uint64

	wake     chan struct{}
	inflight sync.WaitGroup
}

// New creates a scheduler. fired may be nil.
func New(logger logx.Logger, fired counter) *Scheduler {
	return &Scheduler{
		logger: logx.OrNop(logger).With(logx.Component("scheduler")),
		fired:  fired,
		byKey:  make(map[domain.OfferKey]*entry),
		wake:   make(chan struct{}, 1),
	}
}

// Arm schedules key to fire after d, replacing any timer already armed for key.
func (s *Scheduler) Arm(key domain.OfferKey, d time.Duration) TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byKey[key]; ok {
		heap.Remove(&s.queue, old.index)
		delete(s.byKey, key)
	}
	s.gen++
	e := &entry{key: key, gen: s.gen, at: time.Now().Add(d)}
	heap.Push(&s.queue, e)
	s.byKey[key] = e

	if e.index == 0 {
		s.signal()
	}
	return TimerHandle{Key: key, gen: e.gen}
}

// Cancel stops the timer behind h. It returns false when the timer already
// fired, was cancelled, or was replaced by a newer Arm.
func (s *Scheduler) Cancel(h TimerHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byKey[h.Key]
	if !ok || e.gen != h.gen {
		return false
	}
	heap.Remove(&s.queue, e.index)
	delete(s.byKey, h.Key)
	return true
}

// CancelKey stops whatever timer is armed for key.
func (s *Scheduler) CancelKey(key domain.OfferKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byKey[key]
	if !ok {
		return false
	}
	heap.Remove(&s.queue, e.index)
	delete(s.byKey, key)
	return true
}

// Armed reports whether a timer is pending for key.
func (s *Scheduler) Armed(key domain.OfferKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byKey[key]
	return ok
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run fires due timers until ctx is cancelled, then waits for running
// handlers to return. Timers armed before Run are kept.
func (s *Scheduler) Run(ctx context.Context, h Handler) error {
	if h == nil {
		return fmt.Errorf("scheduler: nil handler")
	}
	s.logger.Info("scheduler started")

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		due, next, ok := s.popDue(time.Now())
		for _, key := range due {
			s.fire(ctx, h, key)
		}

		var tick <-chan time.Time
		if ok {
			timer.Reset(next)
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			timer.Stop()
			s.inflight.Wait()
			s.logger.Info("scheduler stopped", logx.Int("pending", s.Pending()))
			return nil
		case <-s.wake:
		case <-tick:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// popDue removes every timer due at now and reports the delay until the next one.
func (s *Scheduler) popDue(now time.Time) ([]domain.OfferKey, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.OfferKey
	for len(s.queue) > 0 && !s.queue[0].at.After(now) {
		e := heap.Pop(&s.queue).(*entry)
		delete(s.byKey, e.key)
		due = append(due, e.key)
	}
	if len(s.queue) == 0 {
		return due, 0, false
	}
	return due, s.queue[0].at.Sub(now), true
}

func (s *Scheduler) fire(ctx context.Context, h Handler, key domain.OfferKey) {
	if s.fired != nil {
		s.fired.Inc()
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("timer handler panic",
					logx.String("order_id", key.OrderID),
					logx.Int64("courier_id", key.CourierID),
					logx.Any("panic", p),
				)
			}
		}()

		if err := h(ctx, key); err != nil {
			s.logger.Error("timer handler failed",
				logx.String("order_id", key.OrderID),
				logx.Int64("courier_id", key.CourierID),
				logx.Err(err),
			)
		}
	}()
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].gen < h[j].gen
	}
	return h[i].at.Before(h[j].at)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
