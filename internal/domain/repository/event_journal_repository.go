package repository

import (
	"context"

	"passenger-service/internal/domain/entity"
)

// EventJournalRepository defines the interface for recording event delivery outcomes
type EventJournalRepository interface {
	Record(ctx context.Context, entry *entity.JournalEntry) error
	FindByPassenger(ctx context.Context, passengerID int64, limit int) ([]*entity.JournalEntry, error)
}
