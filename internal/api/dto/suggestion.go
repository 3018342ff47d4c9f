package dto

import (
	"fleet-dispatch-service/internal/domain"
	"time"
)

// TimeFormat renders epoch seconds the way the caller asked for them.
type TimeFormat struct {
	Human    bool
	Location *time.Location
}

// Format returns the epoch value itself, or a HumanClockLayout string.
func (f TimeFormat) Format(epoch int64) any {
	if !f.Human {
		return epoch
	}
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(epoch, 0).In(loc).Format(HumanClockLayout)
}

type OrderResultResponse struct {
	CourierID         string         `json:"courier_id"`
	NewAssignment     bool           `json:"new_assignment"`
	CourierPos        *int           `json:"courier_pos"`
	ETF               any            `json:"etf"`
	Tag               *domain.Tag    `json:"tag"`
	ClusterFirstOrder *string        `json:"cluster_first_order"`
	Notes             []string       `json:"notes"`
	Status            *domain.Status `json:"status,omitempty"`
}

type CourierQueueEntry struct {
	OrderID    string `json:"order_id"`
	CourierPos *int   `json:"courier_pos"`
	ETF        any    `json:"etf"`
}

type SuggestionResponse struct {
	Orders map[string]OrderResultResponse `json:"orders"`

	// Verbose only.
	RunID               string                         `json:"run_id,omitempty"`
	SortedOrders        []string                       `json:"sorted_orders,omitempty"`
	Clusters            [][]string                     `json:"clusters,omitempty"`
	GoogleDistanceCalls *int64                         `json:"google_distance_calls,omitempty"`
	DistanceCache       []DistanceSample               `json:"distance_cache,omitempty"`
	ByCourier           map[string][]CourierQueueEntry `json:"by_courier,omitempty"`
}

// SuggestionView carries the run output plus the verbose extras.
type SuggestionView struct {
	Suggestion *domain.Suggestion
	ByCourier  map[string][]domain.OrderResult
	Cache      []domain.DistanceSample
	Verbose    bool
	Format     TimeFormat
}

func NewSuggestionResponse(v SuggestionView) SuggestionResponse {
	s := v.Suggestion
	res := SuggestionResponse{Orders: make(map[string]OrderResultResponse, len(s.Results))}

	for id, r := range s.Results {
		out := OrderResultResponse{
			CourierID:         r.CourierID,
			NewAssignment:     r.NewAssignment,
			CourierPos:        r.CourierPos,
			Tag:               r.Tag,
			ClusterFirstOrder: r.ClusterFirstOrder,
			Notes:             r.Notes,
		}
		if out.Notes == nil {
			out.Notes = []string{}
		}
		if r.ETF != nil {
			out.ETF = v.Format.Format(*r.ETF)
		}
		if v.Verbose {
			status := r.Status
			out.Status = &status
		}
		res.Orders[id] = out
	}

	if !v.Verbose {
		return res
	}

	calls := s.ProviderCalls
	res.RunID = s.RunID
	res.SortedOrders = s.SortedOrders
	res.Clusters = s.Clusters
	res.GoogleDistanceCalls = &calls
	res.DistanceCache = FromSamples(v.Cache)
	res.ByCourier = make(map[string][]CourierQueueEntry, len(v.ByCourier))
	for cid, list := range v.ByCourier {
		entries := make([]CourierQueueEntry, 0, len(list))
		for _, r := range list {
			e := CourierQueueEntry{OrderID: r.OrderID, CourierPos: r.CourierPos}
			if r.ETF != nil {
				e.ETF = v.Format.Format(*r.ETF)
			}
			entries = append(entries, e)
		}
		res.ByCourier[cid] = entries
	}
	return res
}

type OrderETAs struct {
	ETAs map[string]int64 `json:"etas"`
}

type ETAResponse struct {
	Orders              map[string]OrderETAs `json:"orders"`
	GoogleDistanceCalls int64                `json:"google_distance_calls"`
}

func NewETAResponse(etas map[string]map[string]int64, calls int64) ETAResponse {
	res := ETAResponse{
		Orders:              make(map[string]OrderETAs, len(etas)),
		GoogleDistanceCalls: calls,
	}
	for id, row := range etas {
		if row == nil {
			row = map[string]int64{}
		}
		res.Orders[id] = OrderETAs{ETAs: row}
	}
	return res
}
