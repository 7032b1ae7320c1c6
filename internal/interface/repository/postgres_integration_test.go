//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"passenger-service/internal/domain/entity"
	"passenger-service/internal/domain/repository"
	"passenger-service/internal/infrastructure/persistence"

	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

type PostgresRepositorySuite struct {
	suite.Suite
	container  *tcpostgres.PostgresContainer
	db         *gorm.DB
	passengers *GormPassengerRepository
	outbox     *GormOutboxRepository
}

func TestPostgresRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRepositorySuite))
}

func (s *PostgresRepositorySuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pss"),
		tcpostgres.WithUsername("pss"),
		tcpostgres.WithPassword("pss"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.db, err = persistence.NewPostgresDB(ctx, dsn, persistence.PostgresOptions{})
	s.Require().NoError(err)
	s.Require().NoError(AutoMigrate(s.db))

	s.passengers = NewGormPassengerRepository(s.db)
	s.outbox = NewGormOutboxRepository(s.db)
}

func (s *PostgresRepositorySuite) TearDownSuite() {
	if s.db != nil {
		_ = persistence.ClosePostgresDB(s.db)
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresRepositorySuite) SetupTest() {
	s.Require().NoError(s.db.Exec("TRUNCATE passenger_outbox, passengers RESTART IDENTITY").Error)
}

func (s *PostgresRepositorySuite) create(name, pnr, flight string) *entity.Passenger {
	p := &entity.Passenger{Name: name, PNR: pnr, FlightNumber: flight, Status: entity.StatusBooked}
	s.Require().NoError(s.passengers.Create(context.Background(), p))
	return p
}

func (s *PostgresRepositorySuite) TestCreateAndLookups() {
	ctx := context.Background()
	a := s.create("A", "ABC123", "XY100")
	s.create("B", "ABC123", "XY100")
	s.create("C", "ZZZ999", "XY200")

	s.Equal(int64(1), a.ID)
	s.Equal(int64(1), a.Version)

	got, err := s.passengers.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("A", got.Name)
	s.Equal(entity.StatusBooked, got.Status)

	_, err = s.passengers.FindByID(ctx, 404)
	s.ErrorIs(err, repository.ErrNotFound)

	byPNR, err := s.passengers.FindByPNR(ctx, "ABC123")
	s.Require().NoError(err)
	s.Len(byPNR, 2)

	byFlight, err := s.passengers.FindByFlight(ctx, "XY999")
	s.Require().NoError(err)
	s.NotNil(byFlight)
	s.Empty(byFlight)
}

func (s *PostgresRepositorySuite) TestStatusCheckConstraint() {
	p := &entity.Passenger{Name: "X", PNR: "P", FlightNumber: "F", Status: "Lost"}
	s.Error(s.passengers.Create(context.Background(), p))
}

func (s *PostgresRepositorySuite) TestUpdateStatusQueuesOutboxRow() {
	ctx := context.Background()
	p := s.create("A", "ABC123", "XY100")

	change, err := s.passengers.UpdateStatus(ctx, entity.StatusUpdate{
		PassengerID:     p.ID,
		Status:          entity.StatusCheckedIn,
		ExpectedVersion: 1,
		EventType:       entity.EventPassengerCheckedIn,
	})
	s.Require().NoError(err)
	s.Equal(entity.StatusCheckedIn, change.Passenger.Status)
	s.Equal(int64(2), change.Passenger.Version)
	s.Require().NotNil(change.Envelope)

	pending, err := s.outbox.CountPending(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), pending)

	claimed, err := s.outbox.ClaimPending(ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Require().Len(claimed, 1)
	s.Equal(change.Envelope.ID, claimed[0].ID)

	env, err := claimed[0].Envelope()
	s.Require().NoError(err)
	s.Equal(entity.EventPassengerCheckedIn, env.EventType)

	again, err := s.outbox.ClaimPending(ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Empty(again)

	s.Require().NoError(s.outbox.MarkDispatched(ctx, claimed[0].ID, time.Now()))
	pending, err = s.outbox.CountPending(ctx)
	s.Require().NoError(err)
	s.Zero(pending)
}

func (s *PostgresRepositorySuite) TestUpdateStatusVersionConflict() {
	ctx := context.Background()
	p := s.create("A", "P", "F")

	_, err := s.passengers.UpdateStatus(ctx, entity.StatusUpdate{PassengerID: p.ID, Status: entity.StatusBoarded, ExpectedVersion: 7})
	s.ErrorIs(err, repository.ErrVersionConflict)

	_, err = s.passengers.UpdateStatus(ctx, entity.StatusUpdate{PassengerID: 999, Status: entity.StatusBoarded, ExpectedVersion: 1})
	s.ErrorIs(err, repository.ErrNotFound)

	pending, err := s.outbox.CountPending(ctx)
	s.Require().NoError(err)
	s.Zero(pending)
}

func (s *PostgresRepositorySuite) TestConcurrentUpdatesOneWins() {
	ctx := context.Background()
	p := s.create("A", "P", "F")

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.passengers.UpdateStatus(ctx, entity.StatusUpdate{
				PassengerID:     p.ID,
				Status:          entity.StatusCheckedIn,
				ExpectedVersion: 1,
				EventType:       entity.EventPassengerCheckedIn,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		s.ErrorIs(err, repository.ErrVersionConflict)
	}
	s.Equal(1, wins)

	pending, err := s.outbox.CountPending(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), pending)
}

func (s *PostgresRepositorySuite) TestMarkFailedAndPark() {
	ctx := context.Background()
	p := s.create("A", "P", "F")

	change, err := s.passengers.UpdateStatus(ctx, entity.StatusUpdate{PassengerID: p.ID, Status: entity.StatusOffloaded, EventType: entity.EventPassengerOffloaded})
	s.Require().NoError(err)
	id := change.Envelope.ID

	s.Require().NoError(s.outbox.MarkFailed(ctx, id, "broker down", time.Now().Add(-time.Second)))

	claimed, err := s.outbox.ClaimPending(ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Require().Len(claimed, 1)
	s.Equal(1, claimed[0].Attempts)
	s.Equal("broker down", claimed[0].LastError)

	s.Require().NoError(s.outbox.Park(ctx, id, time.Now()))
	pending, err := s.outbox.CountPending(ctx)
	s.Require().NoError(err)
	s.Zero(pending)
}
