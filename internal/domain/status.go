package domain

// List of possible courier statuses
const (
	CourierAvailable CourierStatus = "available"
	CourierBusy      CourierStatus = "busy"
	CourierPaused    CourierStatus = "paused"
)

// List of courier transport types
const (
	TransportTypeFoot    CourierTransportType = "on_foot"
	TransportTypeScooter CourierTransportType = "scooter"
	TransportTypeCar     CourierTransportType = "car"
)

// OrderStatus is a step of the customer-facing order timeline.
type OrderStatus string

// Order timeline statuses.
const (
	OrderConfirmed        OrderStatus = "confirmed"
	OrderPreparing        OrderStatus = "preparing"
	OrderSearchingCourier OrderStatus = "searching_courier"
	OrderCourierAssigned  OrderStatus = "courier_assigned"
	OrderCourierNotFound  OrderStatus = "courier_not_found"
	OrderOutForDelivery   OrderStatus = "out_for_delivery"
	OrderDelivered        OrderStatus = "delivered"
	OrderCancelled        OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderConfirmed:        {OrderPreparing, OrderSearchingCourier, OrderCancelled},
	OrderPreparing:        {OrderSearchingCourier, OrderCourierAssigned, OrderOutForDelivery, OrderCancelled},
	OrderSearchingCourier: {OrderCourierAssigned, OrderCourierNotFound, OrderPreparing, OrderCancelled},
	OrderCourierAssigned:  {OrderPreparing, OrderOutForDelivery, OrderCancelled},
	OrderCourierNotFound:  {OrderSearchingCourier, OrderCancelled},
	OrderOutForDelivery:   {OrderDelivered, OrderCancelled},
	OrderDelivered:        nil,
	OrderCancelled:        nil,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal reports whether no status may follow s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransition reports whether next may follow s on the timeline.
// An empty s means the order has no history yet: any non-terminal status opens it.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == "" {
		return !next.Terminal()
	}
	for _, v := range orderTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}
