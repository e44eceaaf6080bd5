package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

// Outcome is the archived result of a finished dispatch.
type Outcome struct {
	OrderID       string
	State         domain.AssignmentState
	Candidates    []int64
	OffersMade    int
	AcceptedBy    int64
	FailureReason domain.FailureReason
	StartedAt     time.Time
	FinishedAt    time.Time
}

// ArchiveRepo stores dispatch outcomes and order status timelines in Postgres.
// It consumes the outward event stream, so every write is idempotent per event.
type ArchiveRepo struct{ db *pgxpool.Pool }

// NewArchiveRepo creates a new ArchiveRepo.
func NewArchiveRepo(db *pgxpool.Pool) *ArchiveRepo { return &ArchiveRepo{db: db} }

// Publish archives the parts of ev worth keeping. Event types without a
// durable representation are ignored.
func (r *ArchiveRepo) Publish(ctx context.Context, ev domain.DispatchEvent) error {
	switch ev.Type {
	case domain.EventDispatchAccepted, domain.EventDispatchFailed:
		if ev.Assignment == nil {
			return apperr.Permanent(fmt.Errorf("%s without assignment: %w", ev.Type, apperr.ErrInvalid))
		}
		return r.saveOutcome(ctx, ev)
	case domain.EventStatusUpdated:
		if ev.Status == nil {
			return apperr.Permanent(fmt.Errorf("%s without status: %w", ev.Type, apperr.ErrInvalid))
		}
		return r.saveStatus(ctx, ev)
	default:
		return nil
	}
}

func (r *ArchiveRepo) saveOutcome(ctx context.Context, ev domain.DispatchEvent) error {
	id, err := uuid.Parse(ev.ID)
	if err != nil {
		return apperr.Permanent(fmt.Errorf("event id %q: %w", ev.ID, apperr.ErrInvalid))
	}
	rec := ev.Assignment

	var acceptedBy *int64
	if rec.State == domain.AssignmentAccepted {
		acceptedBy = &rec.AcceptedBy
	}
	var reason *string
	if rec.FailureReason != "" {
		s := string(rec.FailureReason)
		reason = &s
	}

	// a failed dispatch may be restarted, the newest outcome wins
	_, err = r.db.Exec(ctx, `
        INSERT INTO dispatch_outcomes
            (order_id, state, candidates, offers_made, accepted_by, failure_reason, started_at, finished_at, event_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (order_id) DO UPDATE SET
            state          = EXCLUDED.state,
            candidates     = EXCLUDED.candidates,
            offers_made    = EXCLUDED.offers_made,
            accepted_by    = EXCLUDED.accepted_by,
            failure_reason = EXCLUDED.failure_reason,
            started_at     = EXCLUDED.started_at,
            finished_at    = EXCLUDED.finished_at,
            event_id       = EXCLUDED.event_id
        WHERE dispatch_outcomes.finished_at <= EXCLUDED.finished_at
    `, rec.OrderID, string(rec.State), rec.CandidateCouriers, offersMade(rec), acceptedBy, reason,
		rec.CreatedAt, ev.OccurredAt, id)
	return wrapWrite("save outcome "+rec.OrderID, err)
}

func offersMade(rec *domain.AssignmentRecord) int {
	n := rec.CurrentIndex + 1
	if n > len(rec.CandidateCouriers) {
		n = len(rec.CandidateCouriers)
	}
	return n
}

func (r *ArchiveRepo) saveStatus(ctx context.Context, ev domain.DispatchEvent) error {
	id, err := uuid.Parse(ev.ID)
	if err != nil {
		return apperr.Permanent(fmt.Errorf("event id %q: %w", ev.ID, apperr.ErrInvalid))
	}
	st := ev.Status

	var courierID *int64
	if st.CourierID != 0 {
		courierID = &st.CourierID
	}

	_, err = r.db.Exec(ctx, `
        INSERT INTO order_status_history (event_id, order_id, status, note, courier_id, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (event_id) DO NOTHING
    `, id, st.OrderID, string(st.Status), st.Note, courierID, st.Timestamp)
	return wrapWrite(fmt.Sprintf("save status %s/%s", st.OrderID, st.Status), err)
}

// Outcome returns the archived outcome of orderID.
func (r *ArchiveRepo) Outcome(ctx context.Context, orderID string) (*Outcome, error) {
	var (
		o          Outcome
		state      string
		acceptedBy *int64
		reason     *string
	)
	err := r.db.QueryRow(ctx, `
        SELECT order_id, state, candidates, offers_made, accepted_by, failure_reason, started_at, finished_at
        FROM dispatch_outcomes
        WHERE order_id = $1
    `, orderID).Scan(&o.OrderID, &state, &o.Candidates, &o.OffersMade, &acceptedBy, &reason, &o.StartedAt, &o.FinishedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get outcome %s: %w", orderID, err)
	}
	o.State = domain.AssignmentState(state)
	if acceptedBy != nil {
		o.AcceptedBy = *acceptedBy
	}
	if reason != nil {
		o.FailureReason = domain.FailureReason(*reason)
	}
	return &o, nil
}

// StatusHistory returns the archived timeline of orderID, oldest first.
func (r *ArchiveRepo) StatusHistory(ctx context.Context, orderID string) ([]domain.StatusEvent, error) {
	rows, err := r.db.Query(ctx, `
        SELECT order_id, status, note, courier_id, occurred_at
        FROM order_status_history
        WHERE order_id = $1
        ORDER BY occurred_at ASC, event_id ASC
    `, orderID)
	if err != nil {
		return nil, fmt.Errorf("status history %s: %w", orderID, err)
	}
	defer rows.Close()

	var out []domain.StatusEvent
	for rows.Next() {
		var (
			ev        domain.StatusEvent
			status    string
			courierID *int64
		)
		if err := rows.Scan(&ev.OrderID, &status, &ev.Note, &courierID, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Status = domain.OrderStatus(status)
		if courierID != nil {
			ev.CourierID = *courierID
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
