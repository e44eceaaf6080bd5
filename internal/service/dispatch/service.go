// Package dispatch walks an order through its ranked courier list until one
// courier accepts or the list is exhausted.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/repository"
)

// DefaultOfferWindow is how long a courier may hold an offer.
const DefaultOfferWindow = 60 * time.Second

var errNotDue = errors.New("offer not due yet")

// Deps are the collaborators of the service. Statuses, Notifier and Pool may be nil.
type Deps struct {
	Store    Store
	Timers   Timers
	Statuses StatusPublisher
	Notifier Notifier
	Pool     CourierPool
}

// Config tunes the service.
type Config struct {
	OfferWindow      time.Duration
	OperationTimeout time.Duration
}

// Service is the assignment orchestrator.
//
// Every transition runs inside Store.WithOrderLock: the record update, the
// timer arm/cancel and the queuing of status and outward events form one
// step, so a timeout can never overtake an accept it lost to. Only the
// courier pool update happens after the lock is released.
type Service struct {
	store    Store
	timers   Timers
	statuses StatusPublisher
	notifier Notifier
	pool     CourierPool

	window           time.Duration
	operationTimeout time.Duration
	logger           logx.Logger
	metrics          Metrics
	now              func() time.Time
}

// NewService creates the orchestrator.
func NewService(deps Deps, cfg Config, logger logx.Logger, m Metrics) *Service {
	if cfg.OfferWindow <= 0 {
		cfg.OfferWindow = DefaultOfferWindow
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 3 * time.Second
	}
	return &Service{
		store:            deps.Store,
		timers:           deps.Timers,
		statuses:         deps.Statuses,
		notifier:         deps.Notifier,
		pool:             deps.Pool,
		window:           cfg.OfferWindow,
		operationTimeout: cfg.OperationTimeout,
		logger:           logx.OrNop(logger).With(logx.Component("dispatch")),
		metrics:          m,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// StartDispatch offers orderID to the first of candidates. A failed dispatch
// may be started again; an active or accepted one may not.
func (s *Service) StartDispatch(ctx context.Context, orderID string, candidates []int64) (*domain.AssignmentRecord, error) {
	orderID, err := validateOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if err := validateCandidates(candidates); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *domain.AssignmentRecord
	err = s.store.WithOrderLock(ctx, orderID, func(tx repository.AssignmentTx) error {
		existing, err := tx.Get()
		switch {
		case err == nil && existing.State != domain.AssignmentFailed:
			return fmt.Errorf("dispatch of order %s is %s: %w", orderID, existing.State, apperr.ErrConflict)
		case err != nil && !errors.Is(err, apperr.ErrOrderNotFound):
			return err
		}

		now := s.now()
		rec := &domain.AssignmentRecord{
			OrderID:           orderID,
			CandidateCouriers: append([]int64(nil), candidates...),
			CurrentIndex:      0,
			State:             domain.AssignmentOffered,
			OfferedAt:         now,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.Upsert(rec); err != nil {
			return err
		}

		s.publishStatus(ctx, orderID, domain.OrderSearchingCourier, 0, "")
		s.offer(ctx, rec)
		out = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispatch started",
		logx.String("event", "dispatch_started"),
		logx.String("order_id", orderID),
		logx.Int("candidates", len(candidates)),
	)
	return out, nil
}

// Accept gives the order to courierID if it holds the active offer.
func (s *Service) Accept(ctx context.Context, orderID string, courierID int64) (*domain.AssignmentRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *domain.AssignmentRecord
	err := s.store.WithOrderLock(ctx, orderID, func(tx repository.AssignmentTx) error {
		rec, err := s.activeOffer(tx, courierID)
		if err != nil {
			return err
		}

		s.timers.CancelKey(domain.OfferKey{OrderID: rec.OrderID, CourierID: courierID})

		now := s.now()
		rec.State = domain.AssignmentAccepted
		rec.AcceptedBy = courierID
		rec.AcceptedAt = now
		rec.UpdatedAt = now
		if err := tx.Upsert(rec); err != nil {
			return err
		}

		s.publishStatus(ctx, rec.OrderID, domain.OrderCourierAssigned, courierID, "")
		s.notify(ctx, domain.DispatchEvent{
			Type:       domain.EventDispatchAccepted,
			OrderID:    rec.OrderID,
			CourierID:  courierID,
			Assignment: rec.Clone(),
		})
		inc(s.metrics.Accepted)
		out = rec.Clone()
		return nil
	})
	if err != nil {
		s.logRefused("accept", orderID, courierID, err)
		return nil, err
	}

	s.logger.Info("offer accepted",
		logx.String("event", "courier_assigned"),
		logx.String("order_id", orderID),
		logx.Int64("courier_id", courierID),
	)

	if s.pool != nil {
		if err := s.pool.MarkBusy(ctx, courierID); err != nil {
			s.logger.Warn("courier pool not updated",
				logx.String("order_id", orderID),
				logx.Int64("courier_id", courierID),
				logx.Err(err),
			)
		}
	}
	return out, nil
}

// Reject passes the offer held by courierID to the next candidate.
func (s *Service) Reject(ctx context.Context, orderID string, courierID int64) (*domain.AssignmentRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *domain.AssignmentRecord
	err := s.store.WithOrderLock(ctx, orderID, func(tx repository.AssignmentTx) error {
		rec, err := s.activeOffer(tx, courierID)
		if err != nil {
			return err
		}
		s.timers.CancelKey(domain.OfferKey{OrderID: rec.OrderID, CourierID: courierID})
		if err := s.advance(ctx, tx, rec); err != nil {
			return err
		}
		out = rec.Clone()
		return nil
	})
	if err != nil {
		s.logRefused("reject", orderID, courierID, err)
		return nil, err
	}

	s.logger.Info("offer rejected",
		logx.String("order_id", orderID),
		logx.Int64("courier_id", courierID),
		logx.String("state", string(out.State)),
	)
	return out, nil
}

// OnTimeout expires the offer of courierID. It does nothing when that offer
// is no longer the active one, so late or repeated fires are harmless.
func (s *Service) OnTimeout(ctx context.Context, orderID string, courierID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	expired := false
	err := s.store.WithOrderLock(ctx, orderID, func(tx repository.AssignmentTx) error {
		rec, err := s.activeOffer(tx, courierID)
		if err != nil {
			return err
		}
		// a timer left over from an earlier dispatch of the same order may hit
		// a fresh offer to the same courier, and wall clocks may step back
		if due := rec.OfferedAt.Add(s.window); s.now().Before(due) {
			s.timers.Arm(domain.OfferKey{OrderID: rec.OrderID, CourierID: courierID}, due.Sub(s.now()))
			return errNotDue
		}
		// the scheduler drops a fired entry itself, but direct callers leave it armed
		s.timers.CancelKey(domain.OfferKey{OrderID: rec.OrderID, CourierID: courierID})
		if err := s.advance(ctx, tx, rec); err != nil {
			return err
		}
		expired = true
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errNotDue):
		s.logger.Debug("timeout fired early, re-armed",
			logx.String("order_id", orderID),
			logx.Int64("courier_id", courierID),
		)
		return nil
	case errors.Is(err, apperr.ErrStaleOffer), errors.Is(err, apperr.ErrAlreadyTerminal), errors.Is(err, apperr.ErrOrderNotFound):
		inc(s.metrics.Stale)
		s.logger.Debug("stale timeout ignored",
			logx.String("order_id", orderID),
			logx.Int64("courier_id", courierID),
			logx.Err(err),
		)
		return nil
	default:
		return fmt.Errorf("expire offer %s/%d: %w", orderID, courierID, err)
	}

	if expired {
		inc(s.metrics.Timeouts)
		s.logger.Info("offer expired",
			logx.String("order_id", orderID),
			logx.Int64("courier_id", courierID),
		)
	}
	return nil
}

// HandleTimeout adapts OnTimeout to the scheduler handler signature.
func (s *Service) HandleTimeout(ctx context.Context, key domain.OfferKey) error {
	return s.OnTimeout(ctx, key.OrderID, key.CourierID)
}

// CancelDispatch stops a dispatch that has not finished yet.
func (s *Service) CancelDispatch(ctx context.Context, orderID string, reason domain.FailureReason) (*domain.AssignmentRecord, error) {
	if reason == "" {
		reason = domain.ReasonOperatorCancelled
	}
	if !reason.Valid() || reason == domain.ReasonAllCouriersExhausted {
		return nil, fmt.Errorf("cancel reason %q: %w", reason, apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *domain.AssignmentRecord
	err := s.store.WithOrderLock(ctx, orderID, func(tx repository.AssignmentTx) error {
		rec, err := tx.Get()
		if err != nil {
			return err
		}
		if rec.Terminal() {
			return apperr.ErrAlreadyTerminal
		}
		if c, ok := rec.CurrentCourier(); ok {
			s.timers.CancelKey(domain.OfferKey{OrderID: rec.OrderID, CourierID: c})
		}
		if err := s.fail(ctx, tx, rec, reason); err != nil {
			return err
		}
		out = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispatch cancelled",
		logx.String("order_id", orderID),
		logx.String("reason", string(reason)),
	)
	return out, nil
}

// Get returns the dispatch record of orderID.
func (s *Service) Get(ctx context.Context, orderID string) (*domain.AssignmentRecord, error) {
	orderID, err := validateOrderID(orderID)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, orderID)
}

// ExpireOverdue fails every active dispatch started more than maxDuration
// ago and returns how many it stopped. A zero maxDuration disables it.
func (s *Service) ExpireOverdue(ctx context.Context, maxDuration time.Duration) (int, error) {
	if maxDuration <= 0 {
		return 0, nil
	}
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active dispatches: %w", err)
	}

	cutoff := s.now().Add(-maxDuration)
	n := 0
	for _, rec := range active {
		if rec.CreatedAt.After(cutoff) {
			continue
		}
		_, err := s.CancelDispatch(ctx, rec.OrderID, domain.ReasonDeadlineExceeded)
		switch {
		case err == nil:
			n++
		case errors.Is(err, apperr.ErrAlreadyTerminal), errors.Is(err, apperr.ErrOrderNotFound):
		default:
			return n, err
		}
	}
	return n, nil
}

// activeOffer loads the record and checks that courierID holds its offer.
func (s *Service) activeOffer(tx repository.AssignmentTx, courierID int64) (*domain.AssignmentRecord, error) {
	rec, err := tx.Get()
	if err != nil {
		return nil, err
	}
	// an accepted order is simply no longer on offer; a failed one is over
	if rec.State == domain.AssignmentFailed {
		return nil, apperr.ErrAlreadyTerminal
	}
	if cur, ok := rec.CurrentCourier(); !ok || cur != courierID {
		return nil, apperr.ErrStaleOffer
	}
	return rec, nil
}

// advance moves the offer to the next candidate or fails the dispatch.
func (s *Service) advance(ctx context.Context, tx repository.AssignmentTx, rec *domain.AssignmentRecord) error {
	if rec.CurrentIndex+1 >= len(rec.CandidateCouriers) {
		return s.fail(ctx, tx, rec, domain.ReasonAllCouriersExhausted)
	}

	now := s.now()
	rec.CurrentIndex++
	rec.OfferedAt = now
	rec.UpdatedAt = now
	if err := tx.Upsert(rec); err != nil {
		return err
	}
	s.offer(ctx, rec)
	return nil
}

func (s *Service) fail(ctx context.Context, tx repository.AssignmentTx, rec *domain.AssignmentRecord, reason domain.FailureReason) error {
	now := s.now()
	rec.State = domain.AssignmentFailed
	rec.FailureReason = reason
	rec.FailedAt = now
	rec.UpdatedAt = now
	if err := tx.Upsert(rec); err != nil {
		return err
	}

	st := domain.OrderCourierNotFound
	if reason == domain.ReasonCustomerCancelled {
		st = domain.OrderCancelled
	}
	s.publishStatus(ctx, rec.OrderID, st, 0, string(reason))
	s.notify(ctx, domain.DispatchEvent{
		Type:       domain.EventDispatchFailed,
		OrderID:    rec.OrderID,
		Reason:     reason,
		Assignment: rec.Clone(),
	})
	inc(s.metrics.Failed)

	s.logger.Info("dispatch failed",
		logx.String("event", "dispatch_failed"),
		logx.String("order_id", rec.OrderID),
		logx.String("reason", string(reason)),
	)
	return nil
}

// offer arms the timer of the current candidate and announces the offer.
func (s *Service) offer(ctx context.Context, rec *domain.AssignmentRecord) {
	courierID, _ := rec.CurrentCourier()
	s.timers.Arm(domain.OfferKey{OrderID: rec.OrderID, CourierID: courierID}, s.window)
	s.notify(ctx, domain.DispatchEvent{
		Type:       domain.EventOfferCreated,
		OrderID:    rec.OrderID,
		CourierID:  courierID,
		Assignment: rec.Clone(),
	})
	inc(s.metrics.Offers)
}

func (s *Service) publishStatus(ctx context.Context, orderID string, st domain.OrderStatus, courierID int64, note string) {
	if s.statuses == nil {
		return
	}
	err := s.statuses.PublishStatus(ctx, domain.StatusEvent{
		OrderID:   orderID,
		Status:    st,
		Timestamp: s.now(),
		Note:      note,
		CourierID: courierID,
	})
	if err != nil {
		s.logger.Warn("order status not published",
			logx.String("order_id", orderID),
			logx.String("status", string(st)),
			logx.Err(err),
		)
	}
}

func (s *Service) notify(ctx context.Context, ev domain.DispatchEvent) {
	if s.notifier == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.OccurredAt = s.now()
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn("outward event not queued",
			logx.String("order_id", ev.OrderID),
			logx.String("type", string(ev.Type)),
			logx.Err(err),
		)
	}
}

// logRefused logs a refused courier response. Stale offers are an expected
// outcome of racing responses and stay at debug.
func (s *Service) logRefused(op, orderID string, courierID int64, err error) {
	fields := []logx.Field{
		logx.String("op", op),
		logx.String("order_id", orderID),
		logx.Int64("courier_id", courierID),
		logx.Err(err),
	}
	switch {
	case errors.Is(err, apperr.ErrStaleOffer), errors.Is(err, apperr.ErrAlreadyTerminal):
		inc(s.metrics.Stale)
		s.logger.Debug("stale offer", fields...)
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrInvalid):
		s.logger.Debug("courier response refused", fields...)
	default:
		s.logger.Error("courier response failed", fields...)
	}
}

func validateOrderID(orderID string) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", fmt.Errorf("order id is required: %w", apperr.ErrInvalid)
	}
	return orderID, nil
}

func validateCandidates(candidates []int64) error {
	if len(candidates) == 0 {
		return apperr.ErrNoEligibleCouriers
	}
	seen := make(map[int64]struct{}, len(candidates))
	for _, id := range candidates {
		if id <= 0 {
			return fmt.Errorf("courier id %d: %w", id, apperr.ErrInvalid)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("courier %d listed twice: %w", id, apperr.ErrInvalid)
		}
		seen[id] = struct{}{}
	}
	return nil
}
