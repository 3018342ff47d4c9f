package ports

import (
	"context"
	"fleet-dispatch-service/internal/domain"
)

// Port: fan-out of new assignments to downstream consumers (courier apps).
type SuggestionPublisher interface {
	Publish(ctx context.Context, s *domain.Suggestion) error
}
