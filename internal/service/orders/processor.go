package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// DefaultCandidateLimit caps how many pool couriers are offered an order
// when the event carries no explicit candidate list.
const DefaultCandidateLimit = 10

// Processor processes orders events
type Processor struct {
	dispatch DispatchPort
	tracking TrackingPort
	couriers CourierSource
	logger   logx.Logger
	limit    int
	factory  *actionFactory
}

// NewProcessor creates a new orders.Processor. couriers may be nil, then
// only events with explicit courier_ids start a dispatch.
func NewProcessor(d DispatchPort, t TrackingPort, couriers CourierSource, logger logx.Logger, limit int) *Processor {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	p := &Processor{
		dispatch: d,
		tracking: t,
		couriers: couriers,
		logger:   logx.OrNop(logger).With(logx.Component("orders")),
		limit:    limit,
	}
	p.factory = newActionFactory(p.onReady, p.onCancelled, p.onProgress)
	return p
}

// Handle processes a single orders.Event
func (p *Processor) Handle(ctx context.Context, e Event) error {
	if p.factory == nil {
		return nil
	}
	fn, ok := p.factory.get(e.Status)
	if !ok {
		p.logger.Debug("order event ignored",
			logx.String("order_id", e.OrderID),
			logx.String("status", e.Status),
		)
		return nil
	}
	if strings.TrimSpace(e.OrderID) == "" {
		return apperr.Permanent(fmt.Errorf("order event without order_id: %w", apperr.ErrInvalid))
	}
	return fn(ctx, e)
}

func (p *Processor) onReady(ctx context.Context, e Event) error {
	candidates, err := p.candidates(ctx, e)
	if err != nil {
		return err
	}
	_, err = p.dispatch.StartDispatch(ctx, e.OrderID, candidates)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrConflict):
		p.logger.Debug("dispatch already running", logx.String("order_id", e.OrderID))
		return nil
	case errors.Is(err, apperr.ErrInvalid):
		// a redelivered event would fail the same way
		return apperr.Permanent(err)
	default:
		return err
	}
}

func (p *Processor) candidates(ctx context.Context, e Event) ([]int64, error) {
	if len(e.CourierIDs) > 0 {
		return e.CourierIDs, nil
	}
	if p.couriers == nil {
		return nil, nil
	}
	list, err := p.couriers.ListAvailable(ctx, p.limit)
	if err != nil {
		return nil, fmt.Errorf("list available couriers: %w", err)
	}
	ids := make([]int64, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (p *Processor) onCancelled(ctx context.Context, e Event) error {
	_, err := p.dispatch.CancelDispatch(ctx, e.OrderID, domain.ReasonCustomerCancelled)
	if err == nil {
		// the dispatcher already put cancelled on the timeline
		return nil
	}
	if !errors.Is(err, apperr.ErrNotFound) && !errors.Is(err, apperr.ErrAlreadyTerminal) {
		return err
	}

	err = p.publish(ctx, e, domain.OrderCancelled)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	return err
}

func (p *Processor) onProgress(status domain.OrderStatus) actionFunc {
	return func(ctx context.Context, e Event) error {
		return p.publish(ctx, e, status)
	}
}

func (p *Processor) publish(ctx context.Context, e Event, status domain.OrderStatus) error {
	err := p.tracking.PublishStatus(ctx, domain.StatusEvent{
		OrderID:   e.OrderID,
		Status:    status,
		Timestamp: e.CreatedAt,
		Note:      e.Note,
	})
	if errors.Is(err, apperr.ErrInvalidTransition) || errors.Is(err, apperr.ErrAlreadyTerminal) {
		p.logger.Debug("order status skipped",
			logx.String("order_id", e.OrderID),
			logx.String("status", string(status)),
			logx.Err(err),
		)
		return nil
	}
	return err
}
