package domain

// Courier is a driver with a live position and the zones they may serve.
type Courier struct {
	ID        string
	Location  Coordinates
	Connected bool
	Zones     []int
}

// HasUsableLocation reports whether the live position can seed travel estimates.
func (c Courier) HasUsableLocation() bool {
	return c.Connected && !c.Location.IsZero()
}

// Serves reports whether the courier shares at least one zone with the order.
func (c Courier) Serves(o Order) bool {
	for _, cz := range c.Zones {
		for _, oz := range o.Zones {
			if cz == oz {
				return true
			}
		}
	}
	return false
}

// Snapshot is one consistent view of the fleet handed to the dispatcher.
type Snapshot struct {
	Orders   map[string]Order
	Couriers map[string]Courier
	// Now is the processing time in unix seconds.
	Now int64
}

// HasUnassigned reports whether any order is waiting for a courier.
func (s Snapshot) HasUnassigned() bool {
	for _, o := range s.Orders {
		if o.Status == StatusUnassigned {
			return true
		}
	}
	return false
}
