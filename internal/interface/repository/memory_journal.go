package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"passenger-service/internal/domain/entity"
)

// MemoryEventJournal keeps journal entries in process memory
type MemoryEventJournal struct {
	mu      sync.RWMutex
	entries []*entity.JournalEntry
}

// NewMemoryEventJournal creates an empty journal
func NewMemoryEventJournal() *MemoryEventJournal {
	return &MemoryEventJournal{}
}

// Record appends a copy of entry, stamping RecordedAt when unset
func (j *MemoryEventJournal) Record(ctx context.Context, entry *entity.JournalEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	c := *entry

	j.mu.Lock()
	j.entries = append(j.entries, &c)
	j.mu.Unlock()
	return nil
}

// FindByPassenger returns the newest entries first
func (j *MemoryEventJournal) FindByPassenger(ctx context.Context, passengerID int64, limit int) ([]*entity.JournalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]*entity.JournalEntry, 0)
	for i := len(j.entries) - 1; i >= 0; i-- {
		if j.entries[i].PassengerID == passengerID {
			c := *j.entries[i]
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].RecordedAt.After(out[b].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
