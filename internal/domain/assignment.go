package domain

import (
	"slices"
	"time"
)

// AssignmentState is the dispatch state of a single order.
type AssignmentState string

// Dispatch states.
const (
	AssignmentPending  AssignmentState = "pending"
	AssignmentOffered  AssignmentState = "offered"
	AssignmentAccepted AssignmentState = "accepted"
	AssignmentFailed   AssignmentState = "failed"
)

// FailureReason explains why a dispatch ended in AssignmentFailed.
type FailureReason string

// Failure reasons.
const (
	ReasonAllCouriersExhausted FailureReason = "all_couriers_exhausted"
	ReasonCustomerCancelled    FailureReason = "customer_cancelled"
	ReasonOperatorCancelled    FailureReason = "operator_cancelled"
	ReasonDeadlineExceeded     FailureReason = "dispatch_deadline_exceeded"
)

// Valid reports whether r is a known failure reason.
func (r FailureReason) Valid() bool {
	switch r {
	case ReasonAllCouriersExhausted, ReasonCustomerCancelled, ReasonOperatorCancelled, ReasonDeadlineExceeded:
		return true
	}
	return false
}

// AssignmentRecord is the dispatch attempt of one order.
//
// While State is AssignmentOffered the courier at CandidateCouriers[CurrentIndex]
// holds the only outstanding offer; in every other state no offer is outstanding.
// Once accepted, CurrentIndex and AcceptedBy never change.
type AssignmentRecord struct {
	OrderID           string          `json:"order_id"`
	CandidateCouriers []int64         `json:"candidate_couriers"`
	CurrentIndex      int             `json:"current_index"`
	State             AssignmentState `json:"state"`
	OfferedAt         time.Time       `json:"offered_at,omitzero"`
	AcceptedBy        int64           `json:"accepted_by,omitempty"`
	AcceptedAt        time.Time       `json:"accepted_at,omitzero"`
	FailureReason     FailureReason   `json:"failure_reason,omitempty"`
	FailedAt          time.Time       `json:"failed_at,omitzero"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Terminal reports whether the dispatch reached a final outcome.
func (r *AssignmentRecord) Terminal() bool {
	return r.State == AssignmentAccepted || r.State == AssignmentFailed
}

// CurrentCourier returns the courier holding the outstanding offer.
func (r *AssignmentRecord) CurrentCourier() (int64, bool) {
	if r.State != AssignmentOffered || r.CurrentIndex < 0 || r.CurrentIndex >= len(r.CandidateCouriers) {
		return 0, false
	}
	return r.CandidateCouriers[r.CurrentIndex], true
}

// Clone returns a deep copy of the record.
func (r *AssignmentRecord) Clone() *AssignmentRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.CandidateCouriers = slices.Clone(r.CandidateCouriers)
	return &cp
}

// OfferKey identifies a single offer and its expiration timer.
type OfferKey struct {
	OrderID   string
	CourierID int64
}
