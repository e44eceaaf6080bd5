package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

// AssignmentTx is the view of a single order's record available inside
// WithOrderLock. It is only valid until fn returns.
type AssignmentTx interface {
	Get() (*domain.AssignmentRecord, error)
	Upsert(rec *domain.AssignmentRecord) error
	Delete() error
}

// AssignmentStore keeps dispatch records in memory and serializes access per order.
// Calls for different orders never contend on a shared lock while fn runs.
type AssignmentStore struct {
	mu      sync.RWMutex
	records map[string]*domain.AssignmentRecord

	locksMu sync.Mutex
	locks   map[string]*orderLock
}

type orderLock struct {
	sem  chan struct{}
	refs int
}

// NewAssignmentStore creates an empty store.
func NewAssignmentStore() *AssignmentStore {
	return &AssignmentStore{
		records: make(map[string]*domain.AssignmentRecord),
		locks:   make(map[string]*orderLock),
	}
}

// WithOrderLock runs fn while holding exclusive access to orderID's record.
func (s *AssignmentStore) WithOrderLock(ctx context.Context, orderID string, fn func(tx AssignmentTx) error) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return apperr.ErrInvalid
	}
	if err := s.acquire(ctx, orderID); err != nil {
		return err
	}
	defer s.release(orderID)

	return fn(&assignmentTx{s: s, orderID: orderID})
}

func (s *AssignmentStore) acquire(ctx context.Context, orderID string) error {
	s.locksMu.Lock()
	l := s.locks[orderID]
	if l == nil {
		l = &orderLock{sem: make(chan struct{}, 1)}
		s.locks[orderID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		s.unref(orderID, l)
		return ctx.Err()
	}
}

func (s *AssignmentStore) release(orderID string) {
	s.locksMu.Lock()
	l := s.locks[orderID]
	s.locksMu.Unlock()

	<-l.sem
	s.unref(orderID, l)
}

func (s *AssignmentStore) unref(orderID string, l *orderLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, orderID)
	}
}

// Get returns a copy of the record of orderID.
func (s *AssignmentStore) Get(_ context.Context, orderID string) (*domain.AssignmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[orderID]
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}
	return rec.Clone(), nil
}

// Upsert stores a copy of rec. Callers mutating an existing order should
// go through WithOrderLock.
func (s *AssignmentStore) Upsert(_ context.Context, rec *domain.AssignmentRecord) error {
	if rec == nil || strings.TrimSpace(rec.OrderID) == "" {
		return apperr.ErrInvalid
	}
	s.put(rec)
	return nil
}

// Delete removes the record of orderID.
func (s *AssignmentStore) Delete(_ context.Context, orderID string) error {
	if !s.remove(orderID) {
		return apperr.ErrOrderNotFound
	}
	return nil
}

// ListActive returns copies of all non-terminal records ordered by creation time.
func (s *AssignmentStore) ListActive(_ context.Context) ([]*domain.AssignmentRecord, error) {
	s.mu.RLock()
	out := make([]*domain.AssignmentRecord, 0, len(s.records))
	for _, rec := range s.records {
		if !rec.Terminal() {
			out = append(out, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// PurgeTerminal drops terminal records last updated before the given time
// and returns how many were removed.
func (s *AssignmentStore) PurgeTerminal(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.records {
		if rec.Terminal() && rec.UpdatedAt.Before(before) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *AssignmentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *AssignmentStore) put(rec *domain.AssignmentRecord) {
	s.mu.Lock()
	s.records[rec.OrderID] = rec.Clone()
	s.mu.Unlock()
}

func (s *AssignmentStore) remove(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[orderID]; !ok {
		return false
	}
	delete(s.records, orderID)
	return true
}

type assignmentTx struct {
	s       *AssignmentStore
	orderID string
}

// Get returns a copy of the locked record or ErrOrderNotFound.
func (t *assignmentTx) Get() (*domain.AssignmentRecord, error) {
	return t.s.Get(context.Background(), t.orderID)
}

// Upsert stores rec, which must belong to the locked order.
func (t *assignmentTx) Upsert(rec *domain.AssignmentRecord) error {
	if rec == nil || rec.OrderID != t.orderID {
		return apperr.ErrInvalid
	}
	t.s.put(rec)
	return nil
}

// Delete removes the locked record.
func (t *assignmentTx) Delete() error {
	if !t.s.remove(t.orderID) {
		return apperr.ErrOrderNotFound
	}
	return nil
}
