package usecase_test

import (
	"context"
	"sync"
	"time"

	repo "passenger-service/internal/interface/repository"
)

type outboxState struct {
	attempts   int
	lastError  string
	dispatched bool
	parked     bool
}

// recordingOutbox wraps the memory store and remembers what happened to each
// message, including writes attempted on an already expired context
type recordingOutbox struct {
	*repo.MemoryStore

	mu      sync.Mutex
	states  map[string]*outboxState
	ctxErrs []error
}

func newRecordingOutbox() *recordingOutbox {
	return &recordingOutbox{
		MemoryStore: repo.NewMemoryStore(),
		states:      make(map[string]*outboxState),
	}
}

func (o *recordingOutbox) track(ctx context.Context, id string, apply func(*outboxState)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		o.ctxErrs = append(o.ctxErrs, err)
		return
	}
	st, ok := o.states[id]
	if !ok {
		st = &outboxState{}
		o.states[id] = st
	}
	apply(st)
}

func (o *recordingOutbox) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	o.track(ctx, id, func(st *outboxState) {
		st.dispatched = true
		st.lastError = ""
	})
	return o.MemoryStore.MarkDispatched(ctx, id, at)
}

func (o *recordingOutbox) MarkFailed(ctx context.Context, id string, reason string, retryAt time.Time) error {
	o.track(ctx, id, func(st *outboxState) {
		if !st.dispatched {
			st.attempts++
			st.lastError = reason
		}
	})
	return o.MemoryStore.MarkFailed(ctx, id, reason, retryAt)
}

func (o *recordingOutbox) Park(ctx context.Context, id string, at time.Time) error {
	o.track(ctx, id, func(st *outboxState) { st.parked = true })
	return o.MemoryStore.Park(ctx, id, at)
}

func (o *recordingOutbox) state(id string) outboxState {
	o.mu.Lock()
	defer o.mu.Unlock()

	if st, ok := o.states[id]; ok {
		return *st
	}
	return outboxState{}
}

func (o *recordingOutbox) expiredWrites() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.ctxErrs...)
}
