package usecase

import (
	"context"
	"time"

	"passenger-service/internal/domain/entity"
	"passenger-service/internal/domain/repository"
	"passenger-service/pkg/logger"
	"passenger-service/pkg/metrics"
)

// DispatcherConfig tunes the outbox polling loop
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Lease        time.Duration
	MaxAttempts  int
	// PublishTimeout bounds each delivery so a disconnected broker cannot
	// stall the pass past the claim lease
	PublishTimeout time.Duration
}

// OutboxDispatcher drains queued events that were not delivered right after
// their commit
type OutboxDispatcher struct {
	outbox  repository.OutboxRepository
	relay   *EventRelay
	cfg     DispatcherConfig
	metrics *metrics.Metrics
	logger  logger.Logger
	now     func() time.Time
}

// NewOutboxDispatcher creates a dispatcher. m may be nil.
func NewOutboxDispatcher(
	outbox repository.OutboxRepository,
	relay *EventRelay,
	cfg DispatcherConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *OutboxDispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}

	return &OutboxDispatcher{
		outbox:  outbox,
		relay:   relay,
		cfg:     cfg,
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
}

// Run polls the outbox until ctx is cancelled
func (d *OutboxDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.logger.Info("Outbox dispatcher started",
		"interval", d.cfg.PollInterval,
		"batchSize", d.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox dispatcher stopped")
			return nil
		case <-ticker.C:
			if _, err := d.DispatchPending(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("Error dispatching outbox", "error", err)
			}
		}
	}
}

// DispatchPending runs one claim-and-deliver pass and returns how many
// messages were published
func (d *OutboxDispatcher) DispatchPending(ctx context.Context) (int, error) {
	messages, err := d.outbox.ClaimPending(ctx, d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}

		if msg.Attempts >= d.cfg.MaxAttempts {
			d.park(ctx, msg.ID, msg.EventType, msg.Attempts, msg.LastError)
			continue
		}

		env, err := msg.Envelope()
		if err != nil {
			// An undecodable payload will never publish
			d.park(ctx, msg.ID, msg.EventType, msg.Attempts, err.Error())
			continue
		}

		if d.deliver(ctx, env, msg.Attempts) {
			published++
		}
	}

	if len(messages) > 0 {
		d.logger.Info("Outbox pass complete",
			"claimed", len(messages),
			"published", published)
	}

	d.refreshPending(ctx)
	return published, nil
}

func (d *OutboxDispatcher) deliver(ctx context.Context, env *entity.Envelope, priorAttempts int) bool {
	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()

	return d.relay.Deliver(pubCtx, env, priorAttempts) == nil
}

func (d *OutboxDispatcher) park(ctx context.Context, id, eventType string, attempts int, reason string) {
	if err := d.outbox.Park(ctx, id, d.now().UTC()); err != nil {
		d.logger.Error("Failed to park outbox message", "eventID", id, "error", err)
		return
	}
	if d.metrics != nil {
		d.metrics.OutboxParked.Inc()
	}
	d.logger.Error("Outbox message parked",
		"eventID", id,
		"eventType", eventType,
		"attempts", attempts,
		"lastError", reason)
}

func (d *OutboxDispatcher) refreshPending(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	pending, err := d.outbox.CountPending(ctx)
	if err != nil {
		d.logger.Warn("Failed to count pending outbox messages", "error", err)
		return
	}
	d.metrics.OutboxPending.Set(float64(pending))
}
