package dto

import (
	"encoding/json"
	"fleet-dispatch-service/internal/domain"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	// HumanTimeLayout is accepted for current_time and order windows.
	HumanTimeLayout = "2006-01-02 15:04:05 MST"
	// HumanClockLayout formats etf values in human time mode.
	HumanClockLayout = "15:04:05 MST"
)

type OrderRequest struct {
	ID              string           `json:"id"`
	Lat             *float64         `json:"lat"`
	Lng             *float64         `json:"lng"`
	CourierID       string           `json:"courier_id"`
	Zone            *int             `json:"zone"`
	Zones           []int            `json:"zones"`
	GasType         string           `json:"gas_type"`
	Gallons         *float64         `json:"gallons"`
	TargetTimeStart json.RawMessage  `json:"target_time_start"`
	TargetTimeEnd   json.RawMessage  `json:"target_time_end"`
	Status          string           `json:"status"`
	StatusTimes     map[string]int64 `json:"status_times"`
}

type CourierRequest struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Connected bool     `json:"connected"`
	LastPing  *int64   `json:"last_ping"`
	Zones     []int    `json:"zones"`
}

type DistanceSample struct {
	OriginLat       float64 `json:"origin_lat"`
	OriginLng       float64 `json:"origin_lng"`
	DestLat         float64 `json:"dest_lat"`
	DestLng         float64 `json:"dest_lng"`
	SampledAt       int64   `json:"sampled_at"`
	DurationSeconds int64   `json:"duration_seconds"`
}

// SnapshotRequest is the body of POST /suggestions and POST /etas.
type SnapshotRequest struct {
	Orders          map[string]OrderRequest   `json:"orders"`
	Couriers        map[string]CourierRequest `json:"couriers"`
	HumanTimeFormat bool                      `json:"human_time_format"`
	CurrentTime     json.RawMessage           `json:"current_time"`
	SimulationMode  bool                      `json:"simulation_mode"`
	VerboseOutput   bool                      `json:"verbose_output"`
	// DistanceCache replaces the shared cache for this request when present.
	DistanceCache       []DistanceSample `json:"distance_cache"`
	GoogleDistanceCalls int64            `json:"google_distance_calls"`
}

// Snapshot validates the request and converts it to the domain model.
// Every failure wraps domain.ErrInvalidInput.
func (r *SnapshotRequest) Snapshot(loc *time.Location, wallClock time.Time) (domain.Snapshot, error) {
	snap := domain.Snapshot{
		Orders:   make(map[string]domain.Order, len(r.Orders)),
		Couriers: make(map[string]domain.Courier, len(r.Couriers)),
		Now:      wallClock.Unix(),
	}

	if now, ok, err := parseTime(r.CurrentTime, loc); err != nil {
		return domain.Snapshot{}, &domain.FieldError{Entity: "request", Field: "current_time", Reason: err.Error()}
	} else if ok {
		snap.Now = now
	}

	if r.GoogleDistanceCalls < 0 {
		return domain.Snapshot{}, &domain.FieldError{Entity: "request", Field: "google_distance_calls", Reason: "must not be negative"}
	}

	for _, id := range sortedKeys(r.Couriers) {
		c, err := r.Couriers[id].courier(id)
		if err != nil {
			return domain.Snapshot{}, err
		}
		snap.Couriers[id] = c
	}

	for _, id := range sortedKeys(r.Orders) {
		o, err := r.Orders[id].order(id, loc)
		if err != nil {
			return domain.Snapshot{}, err
		}
		snap.Orders[id] = o
	}

	return snap, nil
}

func (o OrderRequest) order(id string, loc *time.Location) (domain.Order, error) {
	fail := func(field, reason string) (domain.Order, error) {
		return domain.Order{}, &domain.FieldError{Entity: "order", ID: id, Field: field, Reason: reason}
	}

	if strings.TrimSpace(id) == "" {
		return fail("id", "must not be empty")
	}
	if o.ID != "" && o.ID != id {
		return fail("id", fmt.Sprintf("does not match key %q", id))
	}
	if o.Lat == nil || o.Lng == nil {
		return fail("lat/lng", "required")
	}
	at := domain.Coordinates{Lat: *o.Lat, Lng: *o.Lng}
	if !at.Valid() {
		return fail("lat/lng", "out of range")
	}

	status, err := domain.ParseStatus(o.Status)
	if err != nil {
		return fail("status", err.Error())
	}

	courierID := strings.TrimSpace(o.CourierID)
	if status.Committed() && courierID == "" {
		return fail("courier_id", "required for status "+string(status))
	}

	gallons := 0.0
	if o.Gallons != nil {
		gallons = *o.Gallons
		if gallons < 0 {
			return fail("gallons", "must not be negative")
		}
	}

	start, ok, err := parseTime(o.TargetTimeStart, loc)
	if err != nil {
		return fail("target_time_start", err.Error())
	}
	if !ok {
		return fail("target_time_start", "required")
	}
	end, ok, err := parseTime(o.TargetTimeEnd, loc)
	if err != nil {
		return fail("target_time_end", err.Error())
	}
	if !ok {
		return fail("target_time_end", "required")
	}
	if end < start {
		return fail("target_time_end", "before target_time_start")
	}

	zones := slices.Clone(o.Zones)
	if o.Zone != nil && !slices.Contains(zones, *o.Zone) {
		zones = append(zones, *o.Zone)
	}

	return domain.Order{
		ID:          id,
		Location:    at,
		Zones:       zones,
		Gallons:     gallons,
		TargetStart: start,
		TargetEnd:   end,
		Status:      status,
		CourierID:   courierID,
	}, nil
}

func (c CourierRequest) courier(id string) (domain.Courier, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Courier{}, &domain.FieldError{Entity: "courier", Field: "id", Reason: "must not be empty"}
	}

	var at domain.Coordinates
	if c.Lat != nil && c.Lng != nil {
		at = domain.Coordinates{Lat: *c.Lat, Lng: *c.Lng}
		if !at.Valid() {
			return domain.Courier{}, &domain.FieldError{Entity: "courier", ID: id, Field: "lat/lng", Reason: "out of range"}
		}
	}

	return domain.Courier{
		ID:        id,
		Location:  at,
		Connected: c.Connected,
		Zones:     slices.Clone(c.Zones),
	}, nil
}

// Samples converts a request supplied cache. A nil result means none was sent.
func (r *SnapshotRequest) Samples() []domain.DistanceSample {
	if r.DistanceCache == nil {
		return nil
	}
	out := make([]domain.DistanceSample, 0, len(r.DistanceCache))
	for _, s := range r.DistanceCache {
		out = append(out, domain.DistanceSample{
			Origin:      domain.Coordinates{Lat: s.OriginLat, Lng: s.OriginLng},
			Destination: domain.Coordinates{Lat: s.DestLat, Lng: s.DestLng},
			SampledAt:   s.SampledAt,
			Seconds:     s.DurationSeconds,
		})
	}
	return out
}

func FromSamples(samples []domain.DistanceSample) []DistanceSample {
	out := make([]DistanceSample, 0, len(samples))
	for _, s := range samples {
		out = append(out, DistanceSample{
			OriginLat:       s.Origin.Lat,
			OriginLng:       s.Origin.Lng,
			DestLat:         s.Destination.Lat,
			DestLng:         s.Destination.Lng,
			SampledAt:       s.SampledAt,
			DurationSeconds: s.Seconds,
		})
	}
	return out
}

// parseTime accepts epoch seconds as a JSON integer or digit string, or a
// HumanTimeLayout string interpreted in loc. ok is false for absent values.
func parseTime(raw json.RawMessage, loc *time.Location) (_ int64, ok bool, _ error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}

	var epoch int64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		return epoch, true, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false, fmt.Errorf("must be epoch seconds or %q", HumanTimeLayout)
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true, nil
	}
	t, err := time.ParseInLocation(HumanTimeLayout, s, loc)
	if err != nil {
		return 0, false, fmt.Errorf("must be epoch seconds or %q", HumanTimeLayout)
	}
	return t.Unix(), true, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
