package repository

//go:generate mockgen -source=event_publisher.go -destination=mocks/event_publisher_mock.go -package=mocks

import (
	"context"

	"passenger-service/internal/domain/entity"
)

// EventPublisher announces passenger events on the publish/subscribe channel.
// Implementations must be safe for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, envelope *entity.Envelope) error
	Close() error
}
