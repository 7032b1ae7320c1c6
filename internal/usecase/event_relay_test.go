package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"passenger-service/internal/domain/entity"
	"passenger-service/internal/domain/repository/mocks"
	repo "passenger-service/internal/interface/repository"
	"passenger-service/internal/usecase"
	"passenger-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRelayMarksDispatchedAndJournals(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	outbox := mocks.NewMockOutboxRepository(ctrl)
	journal := repo.NewMemoryEventJournal()

	env := entity.NewEnvelope(entity.EventPassengerBoarded, 5, &entity.Passenger{ID: 5, Status: entity.StatusBoarded})

	publisher.EXPECT().Publish(gomock.Any(), env).Return(nil)
	outbox.EXPECT().MarkDispatched(gomock.Any(), env.ID, gomock.Any()).Return(nil)

	relay := usecase.NewEventRelay(publisher, outbox, logger.NewNopLogger(), usecase.WithJournal(journal))
	require.NoError(t, relay.Deliver(context.Background(), env, 0))

	entries, err := journal.FindByPassenger(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.OutcomePublished, entries[0].Outcome)
	assert.Equal(t, entity.StatusBoarded, entries[0].Status)
	assert.Equal(t, 1, entries[0].Attempt)
	assert.Equal(t, env.ID, entries[0].EventID)
}

func TestRelayFailureSchedulesRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	outbox := mocks.NewMockOutboxRepository(ctrl)
	journal := repo.NewMemoryEventJournal()

	env := entity.NewEnvelope(entity.EventPassengerOffloaded, 6, &entity.Passenger{ID: 6, Status: entity.StatusOffloaded})
	body, err := env.Encode()
	require.NoError(t, err)
	restored, err := entity.DecodeEnvelope(env.ID, 6, body)
	require.NoError(t, err)

	before := time.Now().UTC()
	publisher.EXPECT().Publish(gomock.Any(), restored).Return(errors.New("channel closed"))
	outbox.EXPECT().MarkFailed(gomock.Any(), env.ID, "channel closed", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ string, retryAt time.Time) error {
			// third attempt waits base*4
			assert.WithinDuration(t, before.Add(4*time.Second), retryAt, time.Second)
			return nil
		})

	relay := usecase.NewEventRelay(publisher, outbox, logger.NewNopLogger(),
		usecase.WithJournal(journal),
		usecase.WithRetryBackoff(time.Second, time.Minute))

	err = relay.Deliver(context.Background(), restored, 2)
	assert.ErrorIs(t, err, usecase.ErrPublish)

	entries, err := journal.FindByPassenger(context.Background(), 6, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.OutcomeFailed, entries[0].Outcome)
	assert.Equal(t, entity.StatusOffloaded, entries[0].Status)
	assert.Equal(t, 3, entries[0].Attempt)
	assert.Equal(t, "channel closed", entries[0].Error)
}

func TestRelayBackoff(t *testing.T) {
	relay := usecase.NewEventRelay(nil, nil, logger.NewNopLogger(),
		usecase.WithRetryBackoff(2*time.Second, 30*time.Second))

	assert.Equal(t, 2*time.Second, relay.Backoff(0))
	assert.Equal(t, 2*time.Second, relay.Backoff(1))
	assert.Equal(t, 4*time.Second, relay.Backoff(2))
	assert.Equal(t, 16*time.Second, relay.Backoff(4))
	assert.Equal(t, 30*time.Second, relay.Backoff(5))
	assert.Equal(t, 30*time.Second, relay.Backoff(100))
}

func TestRelayRecordsTimeoutOnLiveContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	outbox := mocks.NewMockOutboxRepository(ctrl)
	journal := repo.NewMemoryEventJournal()

	env := entity.NewEnvelope(entity.EventPassengerCheckedIn, 8, &entity.Passenger{ID: 8, Status: entity.StatusCheckedIn})

	publisher.EXPECT().Publish(gomock.Any(), env).
		DoAndReturn(func(ctx context.Context, _ *entity.Envelope) error {
			<-ctx.Done()
			return ctx.Err()
		})
	outbox.EXPECT().MarkFailed(gomock.Any(), env.ID, context.DeadlineExceeded.Error(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ string, _ time.Time) error {
			assert.NoError(t, ctx.Err())
			return ctx.Err()
		})

	relay := usecase.NewEventRelay(publisher, outbox, logger.NewNopLogger(),
		usecase.WithJournal(journal),
		usecase.WithBookkeepingTimeout(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := relay.Deliver(ctx, env, 0)
	assert.ErrorIs(t, err, usecase.ErrPublish)

	entries, err := journal.FindByPassenger(context.Background(), 8, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.OutcomeFailed, entries[0].Outcome)
	assert.Equal(t, context.DeadlineExceeded.Error(), entries[0].Error)
}

func TestRelayMarksDispatchedAfterCallerCancels(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	outbox := mocks.NewMockOutboxRepository(ctrl)
	journal := repo.NewMemoryEventJournal()

	env := entity.NewEnvelope(entity.EventPassengerBoarded, 9, &entity.Passenger{ID: 9, Status: entity.StatusBoarded})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The broker confirms just as the caller goes away
	publisher.EXPECT().Publish(gomock.Any(), env).
		DoAndReturn(func(context.Context, *entity.Envelope) error {
			cancel()
			return nil
		})
	outbox.EXPECT().MarkDispatched(gomock.Any(), env.ID, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ time.Time) error {
			assert.NoError(t, ctx.Err())
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return ctx.Err()
		})

	relay := usecase.NewEventRelay(publisher, outbox, logger.NewNopLogger(), usecase.WithJournal(journal))
	require.NoError(t, relay.Deliver(ctx, env, 0))

	entries, err := journal.FindByPassenger(context.Background(), 9, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.OutcomePublished, entries[0].Outcome)
}
