package domain

import "fmt"

// Status is the lifecycle state of an order as reported by the fleet backend.
type Status string

const (
	StatusUnassigned Status = "unassigned"
	StatusAssigned   Status = "assigned"
	StatusAccepted   Status = "accepted"
	StatusEnroute    Status = "enroute"
	StatusServicing  Status = "servicing"
	StatusComplete   Status = "complete"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus maps the wire value to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusUnassigned, StatusAssigned, StatusAccepted, StatusEnroute,
		StatusServicing, StatusComplete, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Active reports whether the order still takes part in dispatching.
func (s Status) Active() bool {
	return s != StatusComplete && s != StatusCancelled
}

// Committed reports whether the order is already attached to a courier.
func (s Status) Committed() bool {
	switch s {
	case StatusAssigned, StatusAccepted, StatusEnroute, StatusServicing:
		return true
	}
	return false
}

// Working reports whether a courier is physically handling the order.
func (s Status) Working() bool {
	return s == StatusEnroute || s == StatusServicing
}

// Priority ranks active statuses; lower is served first.
func (s Status) Priority() int {
	switch s {
	case StatusServicing:
		return 0
	case StatusEnroute:
		return 1
	case StatusAccepted:
		return 2
	case StatusAssigned:
		return 3
	case StatusUnassigned:
		return 4
	}
	return 5
}

// QueueRank orders a courier's queue: servicing, then enroute, then the rest.
func (s Status) QueueRank() int {
	switch s {
	case StatusServicing:
		return 0
	case StatusEnroute:
		return 1
	}
	return 2
}

// Order is one delivery request. Values are treated as read-only input.
type Order struct {
	ID          string
	Location    Coordinates
	Zones       []int
	Gallons     float64
	TargetStart int64
	TargetEnd   int64
	Status      Status
	CourierID   string
}

// Window is the length of the delivery window in seconds.
func (o Order) Window() int64 { return o.TargetEnd - o.TargetStart }

// Tag is the urgency class of an unassigned order.
type Tag string

const (
	TagLate   Tag = "late"
	TagUrgent Tag = "urgent"
	TagNormal Tag = "normal"
)

// Rank orders tags; lower is more pressing.
func (t Tag) Rank() int {
	switch t {
	case TagLate:
		return 0
	case TagUrgent:
		return 1
	}
	return 2
}
