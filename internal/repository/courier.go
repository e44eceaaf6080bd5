package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

// CourierRepo is the courier pool dispatch candidates are drawn from.
type CourierRepo struct{ db *pgxpool.Pool }

// NewCourierRepo creates a new CourierRepo.
func NewCourierRepo(db *pgxpool.Pool) *CourierRepo { return &CourierRepo{db: db} }

// Get returns courier by its ID.
func (r *CourierRepo) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	var c domain.Courier
	err := r.db.QueryRow(ctx,
		`SELECT id, name, status, transport_type FROM couriers WHERE id=$1`, id,
	).Scan(&c.ID, &c.Name, &c.Status, &c.TransportType)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("courier %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("get courier %d: %w", id, err)
	}
	return &c, nil
}

// ListAvailable returns up to limit available couriers, least loaded first.
// Load is the number of dispatches the courier has accepted so far.
func (r *CourierRepo) ListAvailable(ctx context.Context, limit int) ([]domain.Courier, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
        SELECT c.id, c.name, c.status, c.transport_type
        FROM couriers c
        WHERE c.status = 'available'
        ORDER BY
            (SELECT COUNT(*) FROM dispatch_outcomes o WHERE o.accepted_by = c.id) ASC,
            c.id ASC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("list available couriers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Courier, 0, limit)
	for rows.Next() {
		var c domain.Courier
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.TransportType); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a courier and returns its id.
func (r *CourierRepo) Create(ctx context.Context, c *domain.Courier) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO couriers(name, status, transport_type) VALUES($1,$2,$3) RETURNING id`,
		c.Name, c.Status, c.TransportType).Scan(&id)
	if err != nil {
		if IsDuplicate(err) {
			return 0, apperr.ErrConflict
		}
		return 0, fmt.Errorf("create courier: %w", err)
	}
	return id, nil
}

// UpdateStatus sets the availability of a courier.
func (r *CourierRepo) UpdateStatus(ctx context.Context, id int64, status domain.CourierStatus) error {
	ct, err := r.db.Exec(ctx, `
        UPDATE couriers
        SET status = $2, updated_at = now()
        WHERE id = $1
    `, id, string(status))
	if err != nil {
		return fmt.Errorf("update courier status %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("courier %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// MarkBusy takes a courier out of the available pool.
func (r *CourierRepo) MarkBusy(ctx context.Context, id int64) error {
	return r.UpdateStatus(ctx, id, domain.CourierBusy)
}
