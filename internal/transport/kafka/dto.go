package kafka

import (
	"strings"
	"time"

	"courier-dispatch/internal/service/orders"
)

// EventDTO is a data transfer object for orders.Event
type EventDTO struct {
	OrderID    string    `json:"order_id"`
	Status     string    `json:"status"`
	CourierIDs []int64   `json:"courier_ids,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToDomain converts EventDTO to orders.Event
func ToDomain(dto EventDTO) orders.Event {
	var ids []int64
	for _, id := range dto.CourierIDs {
		if id > 0 {
			ids = append(ids, id)
		}
	}
	return orders.Event{
		OrderID:    strings.TrimSpace(dto.OrderID),
		Status:     strings.TrimSpace(dto.Status),
		CourierIDs: ids,
		Note:       strings.TrimSpace(dto.Note),
		CreatedAt:  dto.CreatedAt,
	}
}
