package handlers

import (
	"strings"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/repository"
)

func recordToResponse(rec *domain.AssignmentRecord) assignmentResponse {
	out := assignmentResponse{
		OrderID:           rec.OrderID,
		State:             rec.State,
		CandidateCouriers: rec.CandidateCouriers,
		CurrentIndex:      rec.CurrentIndex,
		AcceptedBy:        rec.AcceptedBy,
		FailureReason:     rec.FailureReason,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
	if c, ok := rec.CurrentCourier(); ok {
		out.CurrentCourier = &c
	}
	if !rec.OfferedAt.IsZero() {
		t := rec.OfferedAt
		out.OfferedAt = &t
	}
	return out
}

func outcomeToResponse(o *repository.Outcome) assignmentResponse {
	idx := o.OffersMade - 1
	if idx < 0 {
		idx = 0
	}
	return assignmentResponse{
		OrderID:           o.OrderID,
		State:             o.State,
		CandidateCouriers: o.Candidates,
		CurrentIndex:      idx,
		AcceptedBy:        o.AcceptedBy,
		FailureReason:     o.FailureReason,
		CreatedAt:         o.StartedAt,
		UpdatedAt:         o.FinishedAt,
		Archived:          true,
	}
}

func (r locationRequest) toModel(orderID string) (domain.LocationSample, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return domain.LocationSample{}, false
	}
	s := domain.LocationSample{
		CourierID: r.CourierID,
		OrderID:   orderID,
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
		Speed:     r.Speed,
		Heading:   r.Heading,
		Accuracy:  r.Accuracy,
	}
	if r.Timestamp != nil {
		s.Timestamp = r.Timestamp.UTC()
	}
	return s, true
}

func (r statusRequest) toModel(orderID string) domain.StatusEvent {
	return domain.StatusEvent{
		OrderID:   orderID,
		Status:    domain.OrderStatus(strings.ToLower(strings.TrimSpace(string(r.Status)))),
		Note:      strings.TrimSpace(r.Note),
		CourierID: r.CourierID,
	}
}

func (r createCourierRequest) toModel() *domain.Courier {
	c := &domain.Courier{
		Name:          strings.TrimSpace(r.Name),
		Status:        r.Status,
		TransportType: r.TransportType,
	}
	if c.Status == "" {
		c.Status = domain.CourierAvailable
	}
	if c.TransportType == "" {
		c.TransportType = domain.TransportTypeFoot
	}
	return c
}

func modelToResponse(c domain.Courier) courierDTO {
	return courierDTO{
		ID:            c.ID,
		Name:          c.Name,
		Status:        c.Status,
		TransportType: c.TransportType,
	}
}
