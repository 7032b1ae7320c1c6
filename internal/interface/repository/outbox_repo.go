package repository

import (
	"context"
	"fmt"
	"time"

	"passenger-service/internal/domain/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository implements the OutboxRepository interface on PostgreSQL
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GORM outbox repository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{
		db: db,
	}
}

// OutboxMessages GORM model for database mapping
type OutboxMessages struct {
	ID           string     `gorm:"column:id;primaryKey;type:uuid"`
	AggregateID  int64      `gorm:"column:aggregate_id;not null;index"`
	EventType    string     `gorm:"column:event_type;not null"`
	Payload      string     `gorm:"column:payload;type:jsonb;not null"`
	Attempts     int        `gorm:"column:attempts;not null;default:0"`
	LastError    string     `gorm:"column:last_error"`
	AvailableAt  time.Time  `gorm:"column:available_at;not null;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	DispatchedAt *time.Time `gorm:"column:dispatched_at"`
	ParkedAt     *time.Time `gorm:"column:parked_at"`
}

// TableName overrides the default table name
func (OutboxMessages) TableName() string {
	return "passenger_outbox"
}

func newOutboxRow(envelope *entity.Envelope, availableAt time.Time) (*OutboxMessages, error) {
	body, err := envelope.Encode()
	if err != nil {
		return nil, err
	}
	return &OutboxMessages{
		ID:          envelope.ID,
		AggregateID: envelope.AggregateID,
		EventType:   envelope.EventType,
		Payload:     string(body),
		AvailableAt: availableAt,
	}, nil
}

func (m *OutboxMessages) toEntity() *entity.OutboxMessage {
	return &entity.OutboxMessage{
		ID:           m.ID,
		AggregateID:  m.AggregateID,
		EventType:    m.EventType,
		Payload:      []byte(m.Payload),
		Attempts:     m.Attempts,
		LastError:    m.LastError,
		AvailableAt:  m.AvailableAt,
		CreatedAt:    m.CreatedAt,
		DispatchedAt: m.DispatchedAt,
		ParkedAt:     m.ParkedAt,
	}
}

func pendingScope(db *gorm.DB) *gorm.DB {
	return db.Where("dispatched_at IS NULL AND parked_at IS NULL")
}

// ClaimPending locks deliverable rows, pushes their availability out by the
// lease and returns them. Concurrent claimers skip rows locked by each other.
func (r *GormOutboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*entity.OutboxMessage, error) {
	var rows []OutboxMessages

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		result := tx.Scopes(pendingScope).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("available_at <= ?", now).
			Order("created_at").
			Limit(limit).
			Find(&rows)
		if result.Error != nil {
			return result.Error
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		return tx.Model(&OutboxMessages{}).Where("id IN ?", ids).Update("available_at", now.Add(lease)).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox messages: %w", err)
	}

	messages := make([]*entity.OutboxMessage, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].toEntity())
	}
	return messages, nil
}

// MarkDispatched records that the broker accepted the message
func (r *GormOutboxRepository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&OutboxMessages{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"dispatched_at": at,
			"last_error":    "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark outbox message %s dispatched: %w", id, result.Error)
	}
	return nil
}

// MarkFailed counts a failed attempt and schedules the next one
func (r *GormOutboxRepository) MarkFailed(ctx context.Context, id string, reason string, retryAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&OutboxMessages{}).
		Where("id = ? AND dispatched_at IS NULL", id).
		Updates(map[string]interface{}{
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   reason,
			"available_at": retryAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark outbox message %s failed: %w", id, result.Error)
	}
	return nil
}

// Park stops further delivery attempts for the message
func (r *GormOutboxRepository) Park(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&OutboxMessages{}).
		Where("id = ?", id).
		Update("parked_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to park outbox message %s: %w", id, result.Error)
	}
	return nil
}

// CountPending counts messages not yet dispatched or parked
func (r *GormOutboxRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&OutboxMessages{}).Scopes(pendingScope).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count outbox messages: %w", result.Error)
	}
	return count, nil
}
