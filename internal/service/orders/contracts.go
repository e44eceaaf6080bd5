//go:generate mockgen -source=contracts.go -destination=orders_mocks_test.go -package=orders_test

package orders

import (
	"context"

	"courier-dispatch/internal/domain"
)

// DispatchPort abstracts the subset of dispatch operations
// needed by orders Processor when handling order events
type DispatchPort interface {
	StartDispatch(ctx context.Context, orderID string, candidates []int64) (*domain.AssignmentRecord, error)
	CancelDispatch(ctx context.Context, orderID string, reason domain.FailureReason) (*domain.AssignmentRecord, error)
}

// TrackingPort appends statuses to the customer-facing timeline
type TrackingPort interface {
	PublishStatus(ctx context.Context, ev domain.StatusEvent) error
}

// CourierSource lists couriers eligible for a new dispatch, best first
type CourierSource interface {
	ListAvailable(ctx context.Context, limit int) ([]domain.Courier, error)
}
