package domain

type (
	// CourierStatus represents the availability of a courier in the pool.
	CourierStatus string
	// CourierTransportType represents the transport type of a courier.
	CourierTransportType string
)

// Courier is a member of the courier pool a dispatch draws candidates from.
type Courier struct {
	ID            int64
	Name          string
	Status        CourierStatus
	TransportType CourierTransportType
}

// Valid reports whether s is a known courier status.
func (s CourierStatus) Valid() bool {
	switch s {
	case CourierAvailable, CourierBusy, CourierPaused:
		return true
	}
	return false
}

// Valid reports whether t is a known transport type.
func (t CourierTransportType) Valid() bool {
	switch t {
	case TransportTypeFoot, TransportTypeScooter, TransportTypeCar:
		return true
	}
	return false
}
