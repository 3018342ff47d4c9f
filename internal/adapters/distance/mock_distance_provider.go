package distance

import (
	"context"
	"errors"
	"fleet-dispatch-service/internal/domain"
	"fleet-dispatch-service/internal/ports"
	"sync"
	"time"
)

type MockPair struct {
	From, To domain.Coordinates
	Seconds  int64
}

// MockDurationProvider answers from a fixed table. Unknown pairs come back as
// non-OK cells; Fail makes every request error out.
type MockDurationProvider struct {
	mu    sync.Mutex
	m     map[[2]domain.Coordinates]int64
	fail  bool
	calls int
	last  time.Time
}

func NewMockDurationProvider(pairs []MockPair) *MockDurationProvider {
	m := make(map[[2]domain.Coordinates]int64, len(pairs))
	for _, p := range pairs {
		m[[2]domain.Coordinates{p.From, p.To}] = p.Seconds
	}
	return &MockDurationProvider{m: m}
}

// NewFailingDurationProvider returns a provider whose every request fails.
func NewFailingDurationProvider() *MockDurationProvider {
	return &MockDurationProvider{m: map[[2]domain.Coordinates]int64{}, fail: true}
}

func (p *MockDurationProvider) Durations(
	ctx context.Context,
	origins []domain.Coordinates,
	destinations []domain.Coordinates,
	departAt time.Time,
) ([][]ports.DurationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	p.last = departAt

	if p.fail {
		return nil, errors.New("mock provider unavailable")
	}

	rows := make([][]ports.DurationResult, len(origins))
	for i, o := range origins {
		rows[i] = make([]ports.DurationResult, len(destinations))
		for j, d := range destinations {
			secs, ok := p.m[[2]domain.Coordinates{o, d}]
			rows[i][j] = ports.DurationResult{Seconds: secs, OK: ok}
		}
	}
	return rows, nil
}

// Calls is the number of Durations requests received.
func (p *MockDurationProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastDeparture is the departure time of the most recent request.
func (p *MockDurationProvider) LastDeparture() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
