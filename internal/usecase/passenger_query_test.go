package usecase_test

import (
	"context"
	"errors"
	"testing"

	"passenger-service/internal/domain/entity"
	"passenger-service/internal/domain/repository/mocks"
	repo "passenger-service/internal/interface/repository"
	"passenger-service/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func seedStore(t *testing.T, store *repo.MemoryStore, passengers ...*entity.Passenger) {
	t.Helper()
	for _, p := range passengers {
		require.NoError(t, store.Create(context.Background(), p))
	}
}

func TestListByPNRReturnsEveryMatch(t *testing.T) {
	store := repo.NewMemoryStore()
	seedStore(t, store,
		&entity.Passenger{Name: "A", PNR: "ABC123", FlightNumber: "XY100", Status: entity.StatusBooked},
		&entity.Passenger{Name: "B", PNR: "ABC123", FlightNumber: "XY100", Status: entity.StatusCheckedIn},
		&entity.Passenger{Name: "C", PNR: "ZZZ999", FlightNumber: "XY100", Status: entity.StatusBooked},
	)
	q := usecase.NewPassengerQuery(store, nil)

	got, err := q.ListByPNR(context.Background(), "ABC123")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, "B", got[1].Name)

	_, err = q.ListByPNR(context.Background(), "NOPE00")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestListByFlightEmptyIsNotAnError(t *testing.T) {
	store := repo.NewMemoryStore()
	seedStore(t, store, &entity.Passenger{Name: "A", PNR: "P", FlightNumber: "XY100", Status: entity.StatusBooked})
	q := usecase.NewPassengerQuery(store, nil)

	got, err := q.ListByFlight(context.Background(), "XY999")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = q.ListByFlight(context.Background(), "XY100")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestListByFlightStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	passengers := mocks.NewMockPassengerRepository(ctrl)
	passengers.EXPECT().FindByFlight(gomock.Any(), "XY100").Return(nil, errors.New("timeout"))

	_, err := usecase.NewPassengerQuery(passengers, nil).ListByFlight(context.Background(), "XY100")
	assert.ErrorIs(t, err, usecase.ErrPersistence)
}

func TestGetAndHistory(t *testing.T) {
	store := repo.NewMemoryStore()
	journal := repo.NewMemoryEventJournal()
	seedStore(t, store, &entity.Passenger{Name: "A", PNR: "P", FlightNumber: "F", Status: entity.StatusBooked})

	for i := 1; i <= 3; i++ {
		require.NoError(t, journal.Record(context.Background(), &entity.JournalEntry{
			EventID:     "e",
			EventType:   entity.EventPassengerCheckedIn,
			PassengerID: 1,
			Outcome:     entity.OutcomeFailed,
			Attempt:     i,
		}))
	}

	q := usecase.NewPassengerQuery(store, journal)

	p, err := q.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "A", p.Name)

	_, err = q.Get(context.Background(), 0)
	assert.ErrorIs(t, err, usecase.ErrInvalidRequest)
	_, err = q.Get(context.Background(), 2)
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	entries, err := q.History(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = q.History(context.Background(), 42, 0)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestHistoryWithoutJournal(t *testing.T) {
	store := repo.NewMemoryStore()
	seedStore(t, store, &entity.Passenger{Name: "A", PNR: "P", FlightNumber: "F", Status: entity.StatusBooked})

	entries, err := usecase.NewPassengerQuery(store, nil).History(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
