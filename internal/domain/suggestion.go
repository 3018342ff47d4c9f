package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks snapshots rejected at the boundary.
var ErrInvalidInput = errors.New("invalid input")

// FieldError describes one malformed field of an order or courier record.
type FieldError struct {
	Entity string
	ID     string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %q: field %s: %s", e.Entity, e.ID, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

// DistanceSample is one observed travel duration between two points.
type DistanceSample struct {
	Origin      Coordinates
	Destination Coordinates
	SampledAt   int64
	Seconds     int64
}

// OrderResult is the dispatcher's verdict for a single order.
type OrderResult struct {
	OrderID           string
	Status            Status
	CourierID         string
	NewAssignment     bool
	CourierPos        *int
	ETF               *int64
	Tag               *Tag
	ClusterFirstOrder *string
	Notes             []string
}

// Suggestion is the output of one dispatch run.
type Suggestion struct {
	RunID         string
	Now           int64
	Results       map[string]OrderResult
	SortedOrders  []string
	Clusters      [][]string
	ProviderCalls int64
	// ValidCouriers lists couriers whose finish state could be projected.
	ValidCouriers map[string]bool
}
