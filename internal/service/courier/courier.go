package courier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

// MaxCandidates caps how many couriers a single dispatch may draw from the pool.
const MaxCandidates = 50

// Service is the courier pool: it validates input, bounds every repository
// call with a timeout and feeds dispatch with candidates.
type Service struct {
	repo             courierRepository
	operationTimeout time.Duration
}

// NewService creates and configures a courier Service.
func NewService(r courierRepository, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{repo: r, operationTimeout: timeout}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// validateCreate validates a courier for creation.
func validateCreate(c *domain.Courier) error {
	if c == nil {
		return fmt.Errorf("courier is required: %w", apperr.ErrInvalid)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required: %w", apperr.ErrInvalid)
	}
	if c.Status == "" {
		c.Status = domain.CourierAvailable
	}
	if !c.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", c.Status, apperr.ErrInvalid)
	}
	if c.TransportType == "" {
		c.TransportType = domain.TransportTypeFoot
	}
	if !c.TransportType.Valid() {
		return fmt.Errorf("unknown transport type %q: %w", c.TransportType, apperr.ErrInvalid)
	}
	return nil
}

// Get retrieves a courier by its ID.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	if id <= 0 {
		return nil, fmt.Errorf("courier id must be positive: %w", apperr.ErrInvalid)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

// ListAvailable returns up to limit available couriers in dispatch order.
func (s *Service) ListAvailable(ctx context.Context, limit int) ([]domain.Courier, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > MaxCandidates {
		limit = MaxCandidates
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.ListAvailable(ctx, limit)
}

// Create persists a new courier and returns its generated ID.
func (s *Service) Create(ctx context.Context, c *domain.Courier) (int64, error) {
	if err := validateCreate(c); err != nil {
		return 0, err
	}
	c.Name = strings.TrimSpace(c.Name)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.Create(ctx, c)
}

// UpdateStatus changes the availability of a courier.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status domain.CourierStatus) error {
	if id <= 0 {
		return fmt.Errorf("courier id must be positive: %w", apperr.ErrInvalid)
	}
	if !status.Valid() {
		return fmt.Errorf("unknown status %q: %w", status, apperr.ErrInvalid)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.UpdateStatus(ctx, id, status)
}

// MarkBusy takes a courier out of the pool after it accepted an order.
func (s *Service) MarkBusy(ctx context.Context, id int64) error {
	return s.UpdateStatus(ctx, id, domain.CourierBusy)
}
