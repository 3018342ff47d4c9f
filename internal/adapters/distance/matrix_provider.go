package distance

import (
	"context"
	"errors"
	"fleet-dispatch-service/internal/domain"
	"fleet-dispatch-service/internal/platform/obs"
	"fleet-dispatch-service/internal/ports"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// MatrixConfig configures the HTTP distance matrix provider.
type MatrixConfig struct {
	BaseURL           string  `json:"base_url"`
	APIKey            string  `json:"api_key"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	MaxAttempts       int     `json:"max_attempts"`
}

// SetDefaults applies sane defaults.
func (c *MatrixConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://maps.googleapis.com"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 5
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 10
	}
	if c.Burst == 0 {
		c.Burst = 5
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
}

// Validate checks mandatory fields.
func (c MatrixConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("distance matrix api key is empty")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	if c.TimeoutSeconds < 0 || c.RequestsPerSecond < 0 || c.Burst < 0 || c.MaxAttempts < 0 {
		return errors.New("distance matrix limits must not be negative")
	}
	return nil
}

// MatrixProvider implements DurationProvider against a Google style
// Distance Matrix endpoint.
//
// It coordinates:
//   - Client side rate limiting
//   - Retry with exponential backoff on transient failures
//   - Strict shape checks on the returned matrix
//
// The provider is safe for concurrent use.
type MatrixProvider struct {
	session     *http.Client
	apiKey      string
	baseURL     string
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
}

func NewMatrixProvider(cfg MatrixConfig) (*MatrixProvider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &MatrixProvider{
		session:     &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxAttempts: cfg.MaxAttempts,
		backoff:     200 * time.Millisecond,
	}, nil
}

// Durations returns travel time in traffic for every origin x destination pair.
func (p *MatrixProvider) Durations(
	ctx context.Context,
	origins []domain.Coordinates,
	destinations []domain.Coordinates,
	departAt time.Time,
) (_ [][]ports.DurationResult, err error) {
	defer obs.Time(ctx, "matrix.Durations")(&err)

	if len(origins) == 0 || len(destinations) == 0 {
		return nil, errors.New("origins and destinations must be non-empty")
	}

	endpoint := p.baseURL + "/maps/api/distancematrix/json?" + p.query(origins, destinations, departAt).Encode()

	resp, err := p.doWithRetry(ctx, func() (*http.Request, error) {
		return p.newRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	return decodeMatrix(resp.Body, len(origins), len(destinations))
}

func (p *MatrixProvider) query(origins, destinations []domain.Coordinates, departAt time.Time) url.Values {
	q := url.Values{}
	q.Set("origins", joinCoords(origins))
	q.Set("destinations", joinCoords(destinations))

	// The API rejects departure times in the past.
	if departAt.After(time.Now()) {
		q.Set("departure_time", strconv.FormatInt(departAt.Unix(), 10))
	} else {
		q.Set("departure_time", "now")
	}
	q.Set("key", p.apiKey)
	return q
}

func joinCoords(cs []domain.Coordinates) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, "|")
}
