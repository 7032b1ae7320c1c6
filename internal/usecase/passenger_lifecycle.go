package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

// PublishFailureHook is told about every event whose immediate publish failed.
// The event stays in the outbox and is retried by the dispatcher.
type PublishFailureHook func(ctx context.Context, env *entity.Envelope, err error)

// LifecycleOption configures a PassengerLifecycle
type LifecycleOption func(*PassengerLifecycle)

// WithPublishTimeout bounds the immediate publish attempt after a commit
func WithPublishTimeout(d time.Duration) LifecycleOption {
	return func(s *PassengerLifecycle) { s.publishTimeout = d }
}

// WithRelayAfter delays outbox eligibility so the dispatcher does not race
// the immediate publish attempt
func WithRelayAfter(d time.Duration) LifecycleOption {
	return func(s *PassengerLifecycle) { s.relayAfter = d }
}

// WithPolicy replaces the default permissive transition policy
func WithPolicy(p TransitionPolicy) LifecycleOption {
	return func(s *PassengerLifecycle) { s.policy = p }
}

// WithPublishFailureHook registers a hook for failed immediate publishes
func WithPublishFailureHook(h PublishFailureHook) LifecycleOption {
	return func(s *PassengerLifecycle) { s.onPublishFailure = h }
}

// WithMetrics counts transitions by operation and outcome
func WithMetrics(m *metrics.Metrics) LifecycleOption {
	return func(s *PassengerLifecycle) { s.metrics = m }
}

// CreatePassengerInput carries the fields of a new passenger record
type CreatePassengerInput struct {
	Name         string `json:"name"`
	PNR          string `json:"pnr"`
	FlightNumber string `json:"flightNumber"`
	Status       string `json:"status,omitempty"`
}

// PassengerLifecycle applies check-in, boarding and offloading to passengers
// and announces each committed change
type PassengerLifecycle struct {
	passengers       repository.PassengerRepository
	relay            *EventRelay
	policy           TransitionPolicy
	metrics          *metrics.Metrics
	logger           logger.Logger
	tracer           trace.Tracer
	publishTimeout   time.Duration
	relayAfter       time.Duration
	onPublishFailure PublishFailureHook
}

// NewPassengerLifecycle creates a new lifecycle service
func NewPassengerLifecycle(
	passengers repository.PassengerRepository,
	relay *EventRelay,
	log logger.Logger,
	opts ...LifecycleOption,
) *PassengerLifecycle {
	s := &PassengerLifecycle{
		passengers:     passengers,
		relay:          relay,
		policy:         PermissivePolicy(),
		logger:         log,
		tracer:         otel.Tracer(tracerName),
		publishTimeout: 2 * time.Second,
		relayAfter:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics != nil {
		// Export a zero success series per operation before the first request
		for _, tr := range entity.Transitions() {
			s.metrics.TransitionsTotal.WithLabelValues(tr.Operation, outcomeLabel(nil))
		}
	}
	return s
}

// CheckIn marks the passenger as checked in and announces PassengerCheckedIn
func (s *PassengerLifecycle) CheckIn(ctx context.Context, passengerID int64) (*entity.Passenger, error) {
	return s.apply(ctx, entity.TransitionCheckIn, passengerID)
}

// Board marks the passenger as boarded and announces PassengerBoarded
func (s *PassengerLifecycle) Board(ctx context.Context, passengerID int64) (*entity.Passenger, error) {
	return s.apply(ctx, entity.TransitionBoard, passengerID)
}

// Offload marks the passenger as offloaded and announces PassengerOffloaded
func (s *PassengerLifecycle) Offload(ctx context.Context, passengerID int64) (*entity.Passenger, error) {
	return s.apply(ctx, entity.TransitionOffload, passengerID)
}

func (s *PassengerLifecycle) apply(ctx context.Context, t entity.Transition, passengerID int64) (*entity.Passenger, error) {
	ctx, span := s.tracer.Start(ctx, "PassengerLifecycle."+t.Operation, trace.WithAttributes(
		attribute.Int64("passenger.id", passengerID),
		attribute.String("passenger.target_status", t.Target.String()),
	))
	defer span.End()

	passenger, err := s.transition(ctx, t, passengerID)
	s.count(t.Operation, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return passenger, nil
}

func (s *PassengerLifecycle) transition(ctx context.Context, t entity.Transition, passengerID int64) (*entity.Passenger, error) {
	if passengerID <= 0 {
		return nil, fmt.Errorf("%w: passenger id must be positive, got %d", ErrInvalidRequest, passengerID)
	}

	current, err := s.passengers.FindByID(ctx, passengerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, passengerID)
		}
		return nil, fmt.Errorf("%w: failed to load passenger %d: %v", ErrPersistence, passengerID, err)
	}

	if !s.policy.Allows(current.Status, t.Target) {
		return nil, fmt.Errorf("%w: cannot %s passenger %d from status %s",
			ErrInvalidRequest, t.Operation, passengerID, current.Status)
	}

	change, err := s.passengers.UpdateStatus(ctx, entity.StatusUpdate{
		PassengerID:     passengerID,
		Status:          t.Target,
		ExpectedVersion: current.Version,
		EventType:       t.EventType,
		RelayAfter:      s.relayAfter,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, fmt.Errorf("%w: passenger %d changed while applying %s", ErrConflict, passengerID, t.Operation)
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, passengerID)
		default:
			return nil, fmt.Errorf("%w: failed to update passenger %d: %v", ErrPersistence, passengerID, err)
		}
	}

	s.logger.Info("Passenger status updated",
		"passengerID", passengerID,
		"operation", t.Operation,
		"from", current.Status,
		"to", change.Passenger.Status,
		"version", change.Passenger.Version)

	if change.Envelope != nil {
		s.publish(ctx, change.Envelope)
	}

	return change.Passenger, nil
}

// publish makes the single immediate delivery attempt. The status is already
// committed, so it runs detached from the caller's cancellation and its
// failure never reaches the caller.
func (s *PassengerLifecycle) publish(ctx context.Context, env *entity.Envelope) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.relay.Deliver(pubCtx, env, 0); err != nil {
		s.logger.Warn("Immediate publish failed, event left in outbox",
			"eventID", env.ID,
			"eventType", env.EventType,
			"passengerID", env.AggregateID,
			"error", err)
		if s.onPublishFailure != nil {
			hookCtx, cancelHook := s.relay.bookkeepingContext(ctx)
			defer cancelHook()
			s.onPublishFailure(hookCtx, env, err)
		}
	}
}

// Create stores a new passenger. Creation publishes nothing.
func (s *PassengerLifecycle) Create(ctx context.Context, in CreatePassengerInput) (*entity.Passenger, error) {
	ctx, span := s.tracer.Start(ctx, "PassengerLifecycle.create")
	defer span.End()

	passenger, err := s.create(ctx, in)
	s.count("create", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("passenger.id", passenger.ID))
	return passenger, nil
}

func (s *PassengerLifecycle) create(ctx context.Context, in CreatePassengerInput) (*entity.Passenger, error) {
	name := strings.TrimSpace(in.Name)
	pnr := strings.TrimSpace(in.PNR)
	flight := strings.TrimSpace(in.FlightNumber)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if pnr == "" {
		missing = append(missing, "pnr")
	}
	if flight == "" {
		missing = append(missing, "flightNumber")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	status, err := entity.ParsePassengerStatus(in.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	passenger := &entity.Passenger{
		Name:         name,
		PNR:          pnr,
		FlightNumber: flight,
		Status:       status,
	}
	if err := s.passengers.Create(ctx, passenger); err != nil {
		return nil, fmt.Errorf("%w: failed to create passenger: %v", ErrPersistence, err)
	}

	s.logger.Info("Passenger created",
		"passengerID", passenger.ID,
		"pnr", passenger.PNR,
		"flightNumber", passenger.FlightNumber)

	return passenger, nil
}

func (s *PassengerLifecycle) count(operation string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.TransitionsTotal.WithLabelValues(operation, outcomeLabel(err)).Inc()
	if err != nil && !errors.Is(err, ErrInvalidRequest) && !errors.Is(err, ErrNotFound) {
		s.metrics.ErrorsCount.WithLabelValues(operation).Inc()
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "persistence_failure"
	}
}
