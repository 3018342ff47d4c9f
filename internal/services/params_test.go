package services

import (
	"fleet-dispatch-service/internal/domain"
	"testing"
)

func TestServiceSeconds(t *testing.T) {
	p := DefaultParams()

	cases := []struct {
		gallons float64
		want    int64
	}{
		{10, 1200},
		{10.4, 1200},
		{11, 1500},
		{15, 1500},
		{14.5, 1500},
		{0, 1500},
		{40, 1500},
	}
	for _, tc := range cases {
		if got := p.ServiceSeconds(domain.Order{Gallons: tc.gallons}); got != tc.want {
			t.Errorf("ServiceSeconds(%v) = %d, want %d", tc.gallons, got, tc.want)
		}
	}

	if got := p.NearbyServiceSeconds(domain.Order{Gallons: 10}); got != 900 {
		t.Errorf("NearbyServiceSeconds = %d, want 900", got)
	}
}

func TestClusterServiceSeconds(t *testing.T) {
	p := DefaultParams()

	cases := []struct {
		window int64
		want   int64
	}{
		{1800, 1200},
		{3600, 1200},
		{3601, 1020},
		{7200, 1020},
		{10800, 840},
	}
	for _, tc := range cases {
		o := domain.Order{Gallons: 10, TargetStart: 1000, TargetEnd: 1000 + tc.window}
		if got := p.ClusterServiceSeconds(o); got != tc.want {
			t.Errorf("window %d: got %d, want %d", tc.window, got, tc.want)
		}
	}
}

func TestEstimateSeconds(t *testing.T) {
	p := DefaultParams()
	from := domain.Coordinates{Lat: 34.0, Lng: -118.0}
	to := domain.Coordinates{Lat: 34.01, Lng: -118.01}

	if got := p.EstimateSeconds(from, to); got != 300 {
		t.Fatalf("EstimateSeconds = %d, want 300", got)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}

	p := DefaultParams()
	p.SameLocationRadius = p.NearbyRadius * 2
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for same location radius above nearby radius")
	}

	p = DefaultParams()
	p.MaxClusterSize = 0
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for empty clusters")
	}
}
