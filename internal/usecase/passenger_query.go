package usecase

import (
	"context"
	"errors"
	"fmt"

	"passenger-service/internal/domain/entity"
	"passenger-service/internal/domain/repository"
)

const defaultHistoryLimit = 50

// PassengerQuery serves read-only passenger lookups
type PassengerQuery struct {
	passengers repository.PassengerRepository
	journal    repository.EventJournalRepository
}

// NewPassengerQuery creates a query service. journal may be nil, in which
// case History always returns an empty list.
func NewPassengerQuery(passengers repository.PassengerRepository, journal repository.EventJournalRepository) *PassengerQuery {
	return &PassengerQuery{
		passengers: passengers,
		journal:    journal,
	}
}

// ListByFlight returns every passenger on the flight. No match is not an error.
func (q *PassengerQuery) ListByFlight(ctx context.Context, flightNumber string) ([]*entity.Passenger, error) {
	passengers, err := q.passengers.FindByFlight(ctx, flightNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list flight %s: %v", ErrPersistence, flightNumber, err)
	}
	if passengers == nil {
		passengers = []*entity.Passenger{}
	}
	return passengers, nil
}

// ListByPNR returns every passenger sharing the booking reference
func (q *PassengerQuery) ListByPNR(ctx context.Context, pnr string) ([]*entity.Passenger, error) {
	passengers, err := q.passengers.FindByPNR(ctx, pnr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list pnr %s: %v", ErrPersistence, pnr, err)
	}
	if len(passengers) == 0 {
		return nil, fmt.Errorf("%w: no passengers for pnr %s", ErrNotFound, pnr)
	}
	return passengers, nil
}

// Get returns a single passenger
func (q *PassengerQuery) Get(ctx context.Context, passengerID int64) (*entity.Passenger, error) {
	if passengerID <= 0 {
		return nil, fmt.Errorf("%w: passenger id must be positive, got %d", ErrInvalidRequest, passengerID)
	}

	passenger, err := q.passengers.FindByID(ctx, passengerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, passengerID)
		}
		return nil, fmt.Errorf("%w: failed to load passenger %d: %v", ErrPersistence, passengerID, err)
	}
	return passenger, nil
}

// History returns the most recent delivery outcomes for a passenger's events
func (q *PassengerQuery) History(ctx context.Context, passengerID int64, limit int) ([]*entity.JournalEntry, error) {
	if _, err := q.Get(ctx, passengerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if q.journal == nil {
		return []*entity.JournalEntry{}, nil
	}

	entries, err := q.journal.FindByPassenger(ctx, passengerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read history for passenger %d: %v", ErrPersistence, passengerID, err)
	}
	return entries, nil
}
