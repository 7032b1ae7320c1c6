package repository

//go:generate mockgen -source=passenger_repository.go -destination=mocks/passenger_repository_mock.go -package=mocks

import (
	"context"

	"passenger-service/internal/domain/entity"
)

// PassengerRepository defines the interface for passenger persistence
type PassengerRepository interface {
	FindByFlight(ctx context.Context, flightNumber string) ([]*entity.Passenger, error)
	FindByPNR(ctx context.Context, pnr string) ([]*entity.Passenger, error)
	FindByID(ctx context.Context, id int64) (*entity.Passenger, error)
	Create(ctx context.Context, passenger *entity.Passenger) error
	UpdateStatus(ctx context.Context, update entity.StatusUpdate) (*entity.StatusChange, error)
}
