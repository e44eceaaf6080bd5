package tracking

import (
	"context"

	"courier-dispatch/internal/domain"
)

// Sink is the transport side of a subscription, e.g. a WebSocket connection.
// Deliver is called from a single goroutine per subscription; Close is called
// exactly once after the last Deliver.
type Sink interface {
	Deliver(ctx context.Context, ev domain.TrackingEvent) error
	Close() error
}

// Notifier receives outward events. Notify must not block.
type Notifier interface {
	Notify(ctx context.Context, ev domain.DispatchEvent) error
}

type counter interface {
	Inc()
}

// Metrics are optional counters updated by the broadcaster.
type Metrics struct {
	LocationsPublished counter
	StatusesPublished  counter
	SinksDropped       counter
}

func inc(c counter) {
	if c != nil {
		c.Inc()
	}
}
