package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"passenger-service/internal/domain/entity"
	"passenger-service/internal/domain/repository"
)

// MemoryStore keeps passengers and their outbox in process memory. It
// implements both PassengerRepository and OutboxRepository so that a status
// write and its outbox row share one critical section.
type MemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	passengers map[int64]*entity.Passenger
	outbox     map[string]*entity.OutboxMessage
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		passengers: make(map[int64]*entity.Passenger),
		outbox:     make(map[string]*entity.OutboxMessage),
		now:        time.Now,
	}
}

// FindByFlight lists passengers on a flight ordered by ID
func (s *MemoryStore) FindByFlight(ctx context.Context, flightNumber string) ([]*entity.Passenger, error) {
	return s.filter(ctx, func(p *entity.Passenger) bool { return p.FlightNumber == flightNumber })
}

// FindByPNR lists passengers sharing a booking reference ordered by ID
func (s *MemoryStore) FindByPNR(ctx context.Context, pnr string) ([]*entity.Passenger, error) {
	return s.filter(ctx, func(p *entity.Passenger) bool { return p.PNR == pnr })
}

func (s *MemoryStore) filter(ctx context.Context, keep func(*entity.Passenger) bool) ([]*entity.Passenger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Passenger, 0)
	for _, p := range s.passengers {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindByID returns a copy of the passenger or repository.ErrNotFound
func (s *MemoryStore) FindByID(ctx context.Context, id int64) (*entity.Passenger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.passengers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

// Create assigns an ID and version 1 and stores a copy of passenger
func (s *MemoryStore) Create(ctx context.Context, passenger *entity.Passenger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now()
	passenger.ID = s.nextID
	passenger.Version = 1
	passenger.CreatedAt = now
	passenger.UpdatedAt = now
	s.passengers[passenger.ID] = passenger.Clone()

	return nil
}

// UpdateStatus applies the status and queues its envelope under the same lock
func (s *MemoryStore) UpdateStatus(ctx context.Context, update entity.StatusUpdate) (*entity.StatusChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.passengers[update.PassengerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.ExpectedVersion > 0 && current.Version != update.ExpectedVersion {
		return nil, repository.ErrVersionConflict
	}

	now := s.now()
	updated := current.Clone()
	updated.Status = update.Status
	updated.Version++
	updated.UpdatedAt = now

	change := &entity.StatusChange{Passenger: updated.Clone()}

	if update.EventType != "" {
		envelope := entity.NewEnvelope(update.EventType, updated.ID, updated.Clone())
		body, err := envelope.Encode()
		if err != nil {
			return nil, err
		}
		s.outbox[envelope.ID] = &entity.OutboxMessage{
			ID:          envelope.ID,
			AggregateID: envelope.AggregateID,
			EventType:   envelope.EventType,
			Payload:     body,
			AvailableAt: now.Add(update.RelayAfter),
			CreatedAt:   now,
		}
		change.Envelope = envelope
	}

	s.passengers[updated.ID] = updated
	return change, nil
}

func isPending(m *entity.OutboxMessage) bool {
	return m.DispatchedAt == nil && m.ParkedAt == nil
}

// ClaimPending leases up to limit ready messages, oldest first
func (s *MemoryStore) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*entity.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var ready []*entity.OutboxMessage
	for _, m := range s.outbox {
		if isPending(m) && !m.AvailableAt.After(now) {
			ready = append(ready, m)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].CreatedAt.Before(ready[j].CreatedAt) })
	if len(ready) > limit {
		ready = ready[:limit]
	}

	claimed := make([]*entity.OutboxMessage, 0, len(ready))
	for _, m := range ready {
		m.AvailableAt = now.Add(lease)
		c := *m
		claimed = append(claimed, &c)
	}
	return claimed, nil
}

// MarkDispatched records a confirmed publish
func (s *MemoryStore) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.outbox[id]; ok {
		m.DispatchedAt = &at
		m.LastError = ""
	}
	return nil
}

// MarkFailed counts an attempt and hides the message until retryAt. A
// message already dispatched is left alone.
func (s *MemoryStore) MarkFailed(ctx context.Context, id string, reason string, retryAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.outbox[id]; ok && m.DispatchedAt == nil {
		m.Attempts++
		m.LastError = reason
		m.AvailableAt = retryAt
	}
	return nil
}

// Park takes the message out of rotation for good
func (s *MemoryStore) Park(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.outbox[id]; ok {
		m.ParkedAt = &at
	}
	return nil
}

// CountPending counts messages neither dispatched nor parked
func (s *MemoryStore) CountPending(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, m := range s.outbox {
		if isPending(m) {
			n++
		}
	}
	return n, nil
}

// message returns a copy of the queued message
func (s *MemoryStore) message(id string) (*entity.OutboxMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.outbox[id]
	if !ok {
		return nil, false
	}
	c := *m
	return &c, true
}
