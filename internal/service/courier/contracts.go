package courier

import (
	"context"

	"courier-dispatch/internal/domain"
)

// courierRepository defines storage operations required by the courier pool.
type courierRepository interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
	ListAvailable(ctx context.Context, limit int) ([]domain.Courier, error)
	Create(ctx context.Context, c *domain.Courier) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status domain.CourierStatus) error
}
