package handlers

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/service/tracking"
)

type dispatchUsecase interface {
	StartDispatch(ctx context.Context, orderID string, candidates []int64) (*domain.AssignmentRecord, error)
	Accept(ctx context.Context, orderID string, courierID int64) (*domain.AssignmentRecord, error)
	Reject(ctx context.Context, orderID string, courierID int64) (*domain.AssignmentRecord, error)
	CancelDispatch(ctx context.Context, orderID string, reason domain.FailureReason) (*domain.AssignmentRecord, error)
	Get(ctx context.Context, orderID string) (*domain.AssignmentRecord, error)
}

// outcomeReader serves finished dispatches that already left memory.
type outcomeReader interface {
	Outcome(ctx context.Context, orderID string) (*repository.Outcome, error)
	StatusHistory(ctx context.Context, orderID string) ([]domain.StatusEvent, error)
}

type trackingUsecase interface {
	PublishLocation(ctx context.Context, sample domain.LocationSample) error
	PublishStatus(ctx context.Context, ev domain.StatusEvent) error
	LatestLocations(orderID string) ([]domain.LocationSample, error)
	History(orderID string) ([]domain.StatusEvent, error)
	Subscribe(ctx context.Context, orderID string, sink tracking.Sink) (*tracking.Subscription, error)
}

// locationReader serves the last known positions of orders no longer tracked in memory.
type locationReader interface {
	Latest(ctx context.Context, orderID string) ([]domain.LocationSample, error)
}

type courierUsecase interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
	Create(ctx context.Context, c *domain.Courier) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status domain.CourierStatus) error
}
