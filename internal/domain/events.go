package domain

import "time"

// DispatchEventType names an event emitted to the notification layer.
type DispatchEventType string

// Outward event types.
const (
	EventOfferCreated     DispatchEventType = "offer.created"
	EventDispatchAccepted DispatchEventType = "dispatch.accepted"
	EventDispatchFailed   DispatchEventType = "dispatch.failed"
	EventLocationUpdated  DispatchEventType = "location.updated"
	EventStatusUpdated    DispatchEventType = "status.updated"
)

// DispatchEvent is the envelope published outward for every dispatch and
// tracking fact.
type DispatchEvent struct {
	ID         string            `json:"id"`
	Type       DispatchEventType `json:"type"`
	OrderID    string            `json:"order_id"`
	CourierID  int64             `json:"courier_id,omitempty"`
	Reason     FailureReason     `json:"reason,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Assignment *AssignmentRecord `json:"assignment,omitempty"`
	Location   *LocationSample   `json:"location,omitempty"`
	Status     *StatusEvent      `json:"status,omitempty"`
}
