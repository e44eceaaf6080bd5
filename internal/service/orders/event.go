package orders

import (
	"time"
)

// Event is a single order event
type Event struct {
	OrderID    string    `json:"order_id"`
	Status     string    `json:"status"`
	CourierIDs []int64   `json:"courier_ids,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
