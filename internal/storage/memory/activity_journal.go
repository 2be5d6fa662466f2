package memory

import (
	"context"
	"sync"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// DefaultJournalCapacity bounds the number of records kept per subscriber.
const DefaultJournalCapacity = 500

// ActivityJournal is an in-memory implementation of storage.ActivityJournal.
// Each subscriber keeps at most capacity records; older ones are dropped.
type ActivityJournal struct {
	mu       sync.RWMutex
	capacity int
	records  map[string][]domain.ActivityRecord // oldest first
}

// NewActivityJournal creates a journal keeping capacity records per subscriber.
func NewActivityJournal(capacity int) *ActivityJournal {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	return &ActivityJournal{
		capacity: capacity,
		records:  make(map[string][]domain.ActivityRecord),
	}
}

// Append adds a record.
func (j *ActivityJournal) Append(_ context.Context, r *domain.ActivityRecord) error {
	if r == nil || r.SubscriberID == "" {
		return storage.ErrInvalidInput
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	list := append(j.records[r.SubscriberID], *r)
	if len(list) > j.capacity {
		list = list[len(list)-j.capacity:]
	}
	j.records[r.SubscriberID] = list
	return nil
}

// ListBySubscriber returns up to limit records, newest first.
func (j *ActivityJournal) ListBySubscriber(_ context.Context, subscriberID string, limit int) ([]domain.ActivityRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	list := j.records[subscriberID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}

	result := make([]domain.ActivityRecord, 0, limit)
	for i := len(list) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, list[i])
	}
	return result, nil
}

var _ storage.ActivityJournal = (*ActivityJournal)(nil)
