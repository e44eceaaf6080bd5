package domain

import (
	"math"
	"time"
)

// LocationSample is a single position report of a courier delivering an order.
type LocationSample struct {
	CourierID int64     `json:"courier_id"`
	OrderID   string    `json:"order_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`    // m/s
	Heading   *float64  `json:"heading,omitempty"`  // degrees, [0, 360)
	Accuracy  *float64  `json:"accuracy,omitempty"` // meters
}

// ValidCoordinates reports whether latitude and longitude are within range.
func (s LocationSample) ValidCoordinates() bool {
	if math.IsNaN(s.Latitude) || math.IsNaN(s.Longitude) {
		return false
	}
	return s.Latitude >= -90 && s.Latitude <= 90 &&
		s.Longitude >= -180 && s.Longitude <= 180
}

// ValidOptionals reports whether the optional motion fields are sane.
func (s LocationSample) ValidOptionals() bool {
	if s.Speed != nil && (math.IsNaN(*s.Speed) || *s.Speed < 0) {
		return false
	}
	if s.Heading != nil && (math.IsNaN(*s.Heading) || *s.Heading < 0 || *s.Heading >= 360) {
		return false
	}
	if s.Accuracy != nil && (math.IsNaN(*s.Accuracy) || *s.Accuracy < 0) {
		return false
	}
	return true
}

// StatusEvent is one entry of an order's status timeline.
type StatusEvent struct {
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
	CourierID int64       `json:"courier_id,omitempty"`
}

// TrackingEventKind discriminates TrackingEvent payloads.
type TrackingEventKind string

// Tracking event kinds.
const (
	TrackingLocation TrackingEventKind = "location"
	TrackingStatus   TrackingEventKind = "status"
)

// TrackingEvent is what a subscriber of an order receives. Exactly one of
// Location and Status is set, matching Kind.
type TrackingEvent struct {
	Kind     TrackingEventKind `json:"kind"`
	Seq      uint64            `json:"seq"`
	Location *LocationSample   `json:"location,omitempty"`
	Status   *StatusEvent      `json:"status,omitempty"`
}
