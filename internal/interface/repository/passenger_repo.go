package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"passenger-service/internal/domain/entity"
	"passenger-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormPassengerRepository implements the PassengerRepository interface
type GormPassengerRepository struct {
	db *gorm.DB
}

// NewGormPassengerRepository creates a new GORM passenger repository
func NewGormPassengerRepository(db *gorm.DB) *GormPassengerRepository {
	return &GormPassengerRepository{
		db: db,
	}
}

// Passengers GORM model for database mapping
type Passengers struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string    `gorm:"column:name;not null"`
	PNR          string    `gorm:"column:pnr;not null;index"`
	FlightNumber string    `gorm:"column:flight_number;not null;index"`
	Status       string    `gorm:"column:status;not null;check:chk_passengers_status,status IN ('Booked','CheckedIn','Boarded','Offloaded')"`
	Version      int64     `gorm:"column:version;not null;default:1"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

// TableName overrides the default table name
func (Passengers) TableName() string {
	return "passengers"
}

func (m *Passengers) toEntity() *entity.Passenger {
	return &entity.Passenger{
		ID:           m.ID,
		Name:         m.Name,
		PNR:          m.PNR,
		FlightNumber: m.FlightNumber,
		Status:       entity.PassengerStatus(m.Status),
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toEntities(rows []Passengers) []*entity.Passenger {
	passengers := make([]*entity.Passenger, 0, len(rows))
	for i := range rows {
		passengers = append(passengers, rows[i].toEntity())
	}
	return passengers
}

// FindByFlight returns every passenger booked on the flight
func (r *GormPassengerRepository) FindByFlight(ctx context.Context, flightNumber string) ([]*entity.Passenger, error) {
	var rows []Passengers
	result := r.db.WithContext(ctx).Where("flight_number = ?", flightNumber).Order("id").Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list passengers for flight %s: %w", flightNumber, result.Error)
	}
	return toEntities(rows), nil
}

// FindByPNR returns every passenger sharing the booking reference
func (r *GormPassengerRepository) FindByPNR(ctx context.Context, pnr string) ([]*entity.Passenger, error) {
	var rows []Passengers
	result := r.db.WithContext(ctx).Where("pnr = ?", pnr).Order("id").Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list passengers for pnr %s: %w", pnr, result.Error)
	}
	return toEntities(rows), nil
}

// FindByID finds a passenger by id
func (r *GormPassengerRepository) FindByID(ctx context.Context, id int64) (*entity.Passenger, error) {
	var row Passengers
	result := r.db.WithContext(ctx).First(&row, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load passenger %d: %w", id, result.Error)
	}
	return row.toEntity(), nil
}

// Create inserts a passenger and fills in the generated id
func (r *GormPassengerRepository) Create(ctx context.Context, passenger *entity.Passenger) error {
	model := Passengers{
		Name:         passenger.Name,
		PNR:          passenger.PNR,
		FlightNumber: passenger.FlightNumber,
		Status:       string(passenger.Status),
		Version:      1,
	}

	result := r.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to create passenger: %w", result.Error)
	}

	passenger.ID = model.ID
	passenger.Version = model.Version
	passenger.CreatedAt = model.CreatedAt
	passenger.UpdatedAt = model.UpdatedAt

	return nil
}

// UpdateStatus overwrites the status and, when asked to, queues the matching
// envelope in the outbox. Both writes commit or roll back together.
func (r *GormPassengerRepository) UpdateStatus(ctx context.Context, update entity.StatusUpdate) (*entity.StatusChange, error) {
	change := &entity.StatusChange{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		query := tx.Model(&Passengers{}).Where("id = ?", update.PassengerID)
		if update.ExpectedVersion > 0 {
			query = query.Where("version = ?", update.ExpectedVersion)
		}
		result := query.Updates(map[string]interface{}{
			"status":     string(update.Status),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&Passengers{}).Where("id = ?", update.PassengerID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return repository.ErrNotFound
			}
			return repository.ErrVersionConflict
		}

		var row Passengers
		if err := tx.First(&row, update.PassengerID).Error; err != nil {
			return err
		}
		change.Passenger = row.toEntity()

		if update.EventType == "" {
			return nil
		}

		envelope := entity.NewEnvelope(update.EventType, row.ID, change.Passenger.Clone())
		message, err := newOutboxRow(envelope, now.Add(update.RelayAfter))
		if err != nil {
			return err
		}
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("failed to queue %s in outbox: %w", update.EventType, err)
		}
		change.Envelope = envelope

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update status of passenger %d: %w", update.PassengerID, err)
	}

	return change, nil
}
