package repository

//go:generate mockgen -source=outbox_repository.go -destination=mocks/outbox_repository_mock.go -package=mocks

import (
	"context"
	"time"

	"passenger-service/internal/domain/entity"
)

// OutboxRepository defines the interface for draining queued passenger events
type OutboxRepository interface {
	// ClaimPending returns up to limit deliverable messages and hides them from
	// other claimers for the lease duration.
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*entity.OutboxMessage, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string, retryAt time.Time) error
	Park(ctx context.Context, id string, at time.Time) error
	CountPending(ctx context.Context) (int64, error)
}
