package handlers

import (
	"time"

	"courier-dispatch/internal/domain"
)

type startDispatchRequest struct {
	OrderID    string  `json:"order_id"`
	CourierIDs []int64 `json:"courier_ids"`
}

type courierActionRequest struct {
	CourierID int64 `json:"courier_id"`
}

type cancelDispatchRequest struct {
	Reason domain.FailureReason `json:"reason"`
}

type assignmentResponse struct {
	OrderID           string                 `json:"order_id"`
	State             domain.AssignmentState `json:"state"`
	CandidateCouriers []int64                `json:"candidate_couriers"`
	CurrentIndex      int                    `json:"current_index"`
	CurrentCourier    *int64                 `json:"current_courier,omitempty"`
	OfferedAt         *time.Time             `json:"offered_at,omitempty"`
	AcceptedBy        int64                  `json:"accepted_by,omitempty"`
	FailureReason     domain.FailureReason   `json:"failure_reason,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	Archived          bool                   `json:"archived,omitempty"`
}

type locationRequest struct {
	CourierID int64      `json:"courier_id"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Speed     *float64   `json:"speed,omitempty"`
	Heading   *float64   `json:"heading,omitempty"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type statusRequest struct {
	Status    domain.OrderStatus `json:"status"`
	Note      string             `json:"note,omitempty"`
	CourierID int64              `json:"courier_id,omitempty"`
}

type courierDTO struct {
	ID            int64                       `json:"id"`
	Name          string                      `json:"name"`
	Status        domain.CourierStatus        `json:"status"`
	TransportType domain.CourierTransportType `json:"transport_type"`
}

type createCourierRequest struct {
	Name          string                      `json:"name"`
	Status        domain.CourierStatus        `json:"status"`
	TransportType domain.CourierTransportType `json:"transport_type"`
}

type updateCourierStatusRequest struct {
	Status domain.CourierStatus `json:"status"`
}
