package dispatch

import (
	"context"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/service/scheduler"
)

// Store is the per-order serialized record storage.
type Store interface {
	WithOrderLock(ctx context.Context, orderID string, fn func(tx repository.AssignmentTx) error) error
	Get(ctx context.Context, orderID string) (*domain.AssignmentRecord, error)
	ListActive(ctx context.Context) ([]*domain.AssignmentRecord, error)
}

// Timers arms and cancels offer expirations.
type Timers interface {
	Arm(key domain.OfferKey, d time.Duration) scheduler.TimerHandle
	CancelKey(key domain.OfferKey) bool
}

// StatusPublisher appends to the customer-facing order timeline. It must not block.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, ev domain.StatusEvent) error
}

// Notifier queues outward events. It must not block.
type Notifier interface {
	Notify(ctx context.Context, ev domain.DispatchEvent) error
}

// CourierPool is told about couriers that took an order.
type CourierPool interface {
	MarkBusy(ctx context.Context, courierID int64) error
}

type counter interface {
	Inc()
}

// Metrics are optional counters updated by the service.
type Metrics struct {
	Offers   counter
	Accepted counter
	Failed   counter
	Stale    counter
	Timeouts counter
}

func inc(c counter) {
	if c != nil {
		c.Inc()
	}
}
