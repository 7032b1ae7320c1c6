package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"passenger-service/internal/domain/entity"
	"passenger-service/internal/domain/repository"
	"passenger-service/pkg/logger"
	"passenger-service/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "passenger-service/usecase"

// RelayOption configures an EventRelay
type RelayOption func(*EventRelay)

// WithRetryBackoff sets the delay before the first retry and its upper bound
func WithRetryBackoff(base, max time.Duration) RelayOption {
	return func(r *EventRelay) {
		r.baseDelay = base
		r.maxDelay = max
	}
}

// WithBookkeepingTimeout bounds the outbox and journal writes that follow a
// publish attempt
func WithBookkeepingTimeout(d time.Duration) RelayOption {
	return func(r *EventRelay) { r.bookkeepingTimeout = d }
}

// WithJournal records every delivery outcome
func WithJournal(journal repository.EventJournalRepository) RelayOption {
	return func(r *EventRelay) { r.journal = journal }
}

// WithRelayMetrics counts published and failed events
func WithRelayMetrics(m *metrics.Metrics) RelayOption {
	return func(r *EventRelay) { r.metrics = m }
}

// EventRelay is the single delivery path for queued envelopes. Both the
// attempt made right after a commit and the outbox dispatcher go through it.
type EventRelay struct {
	publisher repository.EventPublisher
	outbox    repository.OutboxRepository
	journal   repository.EventJournalRepository
	metrics   *metrics.Metrics
	logger    logger.Logger
	tracer    trace.Tracer
	baseDelay time.Duration
	maxDelay  time.Duration
	now       func() time.Time

	bookkeepingTimeout time.Duration
}

// NewEventRelay creates a relay that publishes through publisher and
// records the result on the outbox row
func NewEventRelay(
	publisher repository.EventPublisher,
	outbox repository.OutboxRepository,
	log logger.Logger,
	opts ...RelayOption,
) *EventRelay {
	r := &EventRelay{
		publisher: publisher,
		outbox:    outbox,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		baseDelay: time.Second,
		maxDelay:  5 * time.Minute,
		now:       time.Now,

		bookkeepingTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deliver publishes env. priorAttempts is the number of failed attempts
// already recorded for its outbox row and drives the retry delay.
func (r *EventRelay) Deliver(ctx context.Context, env *entity.Envelope, priorAttempts int) error {
	ctx, span := r.tracer.Start(ctx, "EventRelay.Deliver", trace.WithAttributes(
		attribute.String("event.id", env.ID),
		attribute.String("event.type", env.EventType),
		attribute.Int64("passenger.id", env.AggregateID),
		attribute.Int("attempt", priorAttempts+1),
	))
	defer span.End()

	start := r.now()
	err := r.publisher.Publish(ctx, env)
	if r.metrics != nil {
		r.metrics.PublishDuration.Observe(r.now().Sub(start).Seconds())
	}

	// The publish context is often the one that just expired
	bookCtx, cancel := r.bookkeepingContext(ctx)
	defer cancel()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		r.onFailure(bookCtx, env, priorAttempts, err)
		return fmt.Errorf("%w: %s for passenger %d: %v", ErrPublish, env.EventType, env.AggregateID, err)
	}

	r.onSuccess(bookCtx, env, priorAttempts)
	return nil
}

// bookkeepingContext returns a context that keeps ctx's values but not its
// cancellation or deadline, bounded by the bookkeeping timeout
func (r *EventRelay) bookkeepingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.bookkeepingTimeout)
}

func (r *EventRelay) onSuccess(ctx context.Context, env *entity.Envelope, priorAttempts int) {
	if r.metrics != nil {
		r.metrics.EventsPublished.WithLabelValues(env.EventType).Inc()
	}

	if err := r.outbox.MarkDispatched(ctx, env.ID, r.now().UTC()); err != nil {
		// The row will be delivered again; consumers dedupe on the message id
		r.logger.Warn("Failed to mark outbox message dispatched",
			"eventID", env.ID,
			"error", err)
	}

	r.record(ctx, env, entity.OutcomePublished, priorAttempts+1, nil)

	r.logger.Debug("Event published",
		"eventID", env.ID,
		"eventType", env.EventType,
		"passengerID", env.AggregateID)
}

func (r *EventRelay) onFailure(ctx context.Context, env *entity.Envelope, priorAttempts int, cause error) {
	if r.metrics != nil {
		r.metrics.PublishFailures.WithLabelValues(env.EventType).Inc()
	}

	retryAt := r.now().UTC().Add(r.Backoff(priorAttempts + 1))
	if err := r.outbox.MarkFailed(ctx, env.ID, cause.Error(), retryAt); err != nil {
		r.logger.Error("Failed to record outbox failure",
			"eventID", env.ID,
			"error", err)
	}

	r.record(ctx, env, entity.OutcomeFailed, priorAttempts+1, cause)

	r.logger.Warn("Event publish failed",
		"eventID", env.ID,
		"eventType", env.EventType,
		"passengerID", env.AggregateID,
		"attempt", priorAttempts+1,
		"retryAt", retryAt,
		"error", cause)
}

func (r *EventRelay) record(ctx context.Context, env *entity.Envelope, outcome string, attempt int, cause error) {
	if r.journal == nil {
		return
	}

	entry := &entity.JournalEntry{
		EventID:     env.ID,
		EventType:   env.EventType,
		PassengerID: env.AggregateID,
		Status:      envelopeStatus(env),
		Outcome:     outcome,
		Attempt:     attempt,
		OccurredAt:  env.Timestamp,
		RecordedAt:  r.now().UTC(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	if err := r.journal.Record(ctx, entry); err != nil {
		r.logger.Warn("Failed to journal event outcome",
			"eventID", env.ID,
			"outcome", outcome,
			"error", err)
	}
}

// Backoff returns the delay before the given attempt, doubling from the base
// delay and capped at the max delay
func (r *EventRelay) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := r.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.maxDelay || delay <= 0 {
			return r.maxDelay
		}
	}
	if delay > r.maxDelay {
		return r.maxDelay
	}
	return delay
}

// envelopeStatus reads the passenger status carried in the payload. Fresh
// envelopes hold a *Passenger, envelopes restored from the outbox hold raw JSON.
func envelopeStatus(env *entity.Envelope) entity.PassengerStatus {
	switch data := env.Data.(type) {
	case *entity.Passenger:
		return data.Status
	case json.RawMessage:
		var p struct {
			Status entity.PassengerStatus `json:"status"`
		}
		if err := json.Unmarshal(data, &p); err == nil {
			return p.Status
		}
	}
	return ""
}
