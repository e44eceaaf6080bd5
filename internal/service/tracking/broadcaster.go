// Package tracking fans out courier locations and order statuses to the
// subscribers of each order.
package tracking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// DefaultBufferSize is the per-subscription queue length used when none is configured.
const DefaultBufferSize = 64

// Broadcaster is a per-order publish/subscribe hub with replay.
//
// The registry lock only guards the order map. Publishing to an order takes
// that order's write lock, so every subscriber of an order sees events in
// the same order they were accepted.
type Broadcaster struct {
	logger   logx.Logger
	notifier Notifier
	metrics  Metrics
	buffer   int
	now      func() time.Time

	mu     sync.RWMutex
	orders map[string]*orderChannel

	published atomic.Int64
	dropped   atomic.Int64
}

type cachedSample struct {
	seq    uint64
	sample domain.LocationSample
}

type cachedStatus struct {
	seq    uint64
	status domain.StatusEvent
}

type orderChannel struct {
	id string

	mu       sync.RWMutex
	seq      uint64
	latest   map[int64]cachedSample
	history  []cachedStatus
	subs     map[string]*Subscription
	closed   bool
	closedAt time.Time

	// time of the last accepted publish
	lastActivity time.Time
}

// New creates a Broadcaster. notifier may be nil.
func New(logger logx.Logger, notifier Notifier, bufferSize int, m Metrics) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broadcaster{
		logger:   logx.OrNop(logger).With(logx.Component("tracking")),
		notifier: notifier,
		metrics:  m,
		buffer:   bufferSize,
		now:      func() time.Time { return time.Now().UTC() },
		orders:   make(map[string]*orderChannel),
	}
}

func (b *Broadcaster) lookup(orderID string) (*orderChannel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	oc, ok := b.orders[orderID]
	return oc, ok
}

func (b *Broadcaster) lookupOrCreate(orderID string) *orderChannel {
	if oc, ok := b.lookup(orderID); ok {
		return oc
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if oc, ok := b.orders[orderID]; ok {
		return oc
	}
	oc := &orderChannel{
		id:           orderID,
		latest:       make(map[int64]cachedSample),
		subs:         make(map[string]*Subscription),
		lastActivity: b.now(),
	}
	b.orders[orderID] = oc
	return oc
}

// Subscribe attaches sink to orderID. The sink first receives the latest
// sample of every courier and the full status history, in publish order,
// then every new event. Subscribing to a finished order replays and closes.
func (b *Broadcaster) Subscribe(ctx context.Context, orderID string, sink Sink) (*Subscription, error) {
	if sink == nil || strings.TrimSpace(orderID) == "" {
		return nil, apperr.ErrInvalid
	}
	oc, ok := b.lookup(orderID)
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &Subscription{
		id:      uuid.NewString(),
		orderID: orderID,
		b:       b,
		oc:      oc,
		sink:    sink,
		ctx:     subCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	oc.mu.Lock()
	replay := oc.replay()
	sub.ch = make(chan domain.TrackingEvent, len(replay)+b.buffer)
	for _, ev := range replay {
		sub.ch <- ev
	}
	closed := oc.closed
	if closed {
		sub.closeQueue()
	} else {
		oc.subs[sub.id] = sub
	}
	oc.mu.Unlock()

	go sub.run()

	b.logger.Debug("subscribed",
		logx.String("order_id", orderID),
		logx.String("subscription_id", sub.id),
		logx.Int("replayed", len(replay)),
		logx.Bool("closed", closed),
	)
	return sub, nil
}

// replay builds the catch-up stream. Called with oc.mu held.
func (oc *orderChannel) replay() []domain.TrackingEvent {
	out := make([]domain.TrackingEvent, 0, len(oc.latest)+len(oc.history))
	for _, c := range oc.latest {
		s := c.sample
		out = append(out, domain.TrackingEvent{Kind: domain.TrackingLocation, Seq: c.seq, Location: &s})
	}
	for _, c := range oc.history {
		st := c.status
		out = append(out, domain.TrackingEvent{Kind: domain.TrackingStatus, Seq: c.seq, Status: &st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// PublishLocation records a courier position and fans it out.
func (b *Broadcaster) PublishLocation(ctx context.Context, sample domain.LocationSample) error {
	if !sample.ValidCoordinates() {
		return apperr.ErrInvalidCoordinates
	}
	if strings.TrimSpace(sample.OrderID) == "" || sample.CourierID <= 0 {
		return fmt.Errorf("order id and courier id are required: %w", apperr.ErrInvalid)
	}
	if !sample.ValidOptionals() {
		return fmt.Errorf("speed, heading or accuracy out of range: %w", apperr.ErrInvalid)
	}
	oc, ok := b.lookup(sample.OrderID)
	if !ok {
		return apperr.ErrOrderNotFound
	}

	oc.mu.Lock()
	defer oc.mu.Unlock()
	if oc.closed {
		return apperr.ErrAlreadyTerminal
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = b.now()
	}

	oc.seq++
	oc.lastActivity = b.now()
	if cur, ok := oc.latest[sample.CourierID]; !ok || !sample.Timestamp.Before(cur.sample.Timestamp) {
		oc.latest[sample.CourierID] = cachedSample{seq: oc.seq, sample: sample}
	}

	s := sample
	b.fanout(oc, domain.TrackingEvent{Kind: domain.TrackingLocation, Seq: oc.seq, Location: &s})
	b.notify(ctx, domain.DispatchEvent{
		Type:      domain.EventLocationUpdated,
		OrderID:   sample.OrderID,
		CourierID: sample.CourierID,
		Location:  &s,
	})
	inc(b.metrics.LocationsPublished)
	return nil
}

// PublishStatus appends ev to the order timeline and fans it out. The first
// status opens the order; a terminal status closes it after delivery.
func (b *Broadcaster) PublishStatus(ctx context.Context, ev domain.StatusEvent) error {
	if strings.TrimSpace(ev.OrderID) == "" {
		return fmt.Errorf("order id is required: %w", apperr.ErrInvalid)
	}
	if !ev.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", ev.Status, apperr.ErrInvalid)
	}

	var oc *orderChannel
	if existing, ok := b.lookup(ev.OrderID); ok {
		oc = existing
	} else {
		if ev.Status.Terminal() {
			return apperr.ErrOrderNotFound
		}
		oc = b.lookupOrCreate(ev.OrderID)
	}

	oc.mu.Lock()
	defer oc.mu.Unlock()
	if oc.closed {
		return apperr.ErrAlreadyTerminal
	}
	if cur := oc.current(); !cur.CanTransition(ev.Status) {
		return fmt.Errorf("%s -> %s: %w", cur, ev.Status, apperr.ErrInvalidTransition)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}

	oc.seq++
	oc.lastActivity = b.now()
	oc.history = append(oc.history, cachedStatus{seq: oc.seq, status: ev})

	st := ev
	b.fanout(oc, domain.TrackingEvent{Kind: domain.TrackingStatus, Seq: oc.seq, Status: &st})
	b.notify(ctx, domain.DispatchEvent{
		Type:      domain.EventStatusUpdated,
		OrderID:   ev.OrderID,
		CourierID: ev.CourierID,
		Status:    &st,
	})
	inc(b.metrics.StatusesPublished)

	if ev.Status.Terminal() {
		oc.closed = true
		oc.closedAt = b.now()
		for id, sub := range oc.subs {
			delete(oc.subs, id)
			sub.closeQueue()
		}
		b.logger.Info("order tracking closed", logx.String("order_id", ev.OrderID), logx.String("status", string(ev.Status)))
	}
	return nil
}

// current returns the last status of the order. Called with oc.mu held.
func (oc *orderChannel) current() domain.OrderStatus {
	if len(oc.history) == 0 {
		return ""
	}
	return oc.history[len(oc.history)-1].status.Status
}

// fanout queues ev on every subscription. Called with oc.mu held.
func (b *Broadcaster) fanout(oc *orderChannel, ev domain.TrackingEvent) {
	b.published.Add(1)
	for id, sub := range oc.subs {
		if sub.offer(ev) {
			continue
		}
		delete(oc.subs, id)
		sub.cancel()
		sub.closeQueue()
		inc(b.metrics.SinksDropped)
		b.dropped.Add(1)
		b.logger.Warn("subscriber too slow, unsubscribing",
			logx.String("order_id", oc.id),
			logx.String("subscription_id", id),
			logx.Uint64("seq", ev.Seq),
		)
	}
}

func (b *Broadcaster) notify(ctx context.Context, ev domain.DispatchEvent) {
	if b.notifier == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.OccurredAt = b.now()
	if err := b.notifier.Notify(ctx, ev); err != nil {
		b.logger.Warn("outward event not queued",
			logx.String("order_id", ev.OrderID),
			logx.String("type", string(ev.Type)),
			logx.Err(err),
		)
	}
}

// LatestLocations returns the newest sample of every courier of orderID,
// oldest first.
func (b *Broadcaster) LatestLocations(orderID string) ([]domain.LocationSample, error) {
	oc, ok := b.lookup(orderID)
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}
	oc.mu.RLock()
	out := make([]domain.LocationSample, 0, len(oc.latest))
	for _, c := range oc.latest {
		out = append(out, c.sample)
	}
	oc.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// History returns the status timeline of orderID.
func (b *Broadcaster) History(orderID string) ([]domain.StatusEvent, error) {
	oc, ok := b.lookup(orderID)
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}
	oc.mu.RLock()
	defer oc.mu.RUnlock()
	out := make([]domain.StatusEvent, len(oc.history))
	for i, c := range oc.history {
		out[i] = c.status
	}
	return out, nil
}

// PurgeClosed forgets orders closed before the given time, and open orders
// with no publish since then, and returns how many were removed. Streams of
// a dropped open order are ended.
func (b *Broadcaster) PurgeClosed(before time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, oc := range b.orders {
		oc.mu.Lock()
		expired := oc.closed && oc.closedAt.Before(before)
		idle := !oc.closed && oc.lastActivity.Before(before)
		if idle {
			oc.closed = true
			oc.closedAt = b.now()
			for sid, sub := range oc.subs {
				delete(oc.subs, sid)
				sub.closeQueue()
			}
		}
		oc.mu.Unlock()
		if expired || idle {
			delete(b.orders, id)
			n++
		}
		if idle {
			b.logger.Info("idle order tracking dropped", logx.String("order_id", id))
		}
	}
	return n
}

// Stats is a point-in-time view of the broadcaster.
type Stats struct {
	Orders         int   `json:"orders"`
	ClosedOrders   int   `json:"closed_orders"`
	Subscriptions  int   `json:"subscriptions"`
	TotalPublished int64 `json:"total_published"`
	TotalDropped   int64 `json:"total_dropped"`
}

// Stats returns broadcaster statistics.
func (b *Broadcaster) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := Stats{
		Orders:         len(b.orders),
		TotalPublished: b.published.Load(),
		TotalDropped:   b.dropped.Load(),
	}
	for _, oc := range b.orders {
		oc.mu.RLock()
		if oc.closed {
			st.ClosedOrders++
		}
		st.Subscriptions += len(oc.subs)
		oc.mu.RUnlock()
	}
	return st
}
