package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/audit"
)

// MemoryAuditRepository is a thread-safe in-memory audit.EntryRepository for
// tests. Behavior mirrors the PostgreSQL implementation: newest-first List,
// ascending ListBySequence, zero latest sequence when empty.
type MemoryAuditRepository struct {
	mu      sync.RWMutex
	entries []*audit.Entry

	// FailWrites makes Store and StoreBatch return FailErr, for exercising
	// requeue paths
	FailWrites bool
	FailErr    error
}

// NewMemoryAuditRepository creates an empty in-memory audit store
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Store(ctx context.Context, entry *audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWrites {
		return r.FailErr
	}
	clone := *entry
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *MemoryAuditRepository) StoreBatch(ctx context.Context, entries []*audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWrites {
		return r.FailErr
	}
	for _, entry := range entries {
		clone := *entry
		r.entries = append(r.entries, &clone)
	}
	return nil
}

func (r *MemoryAuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*audit.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.entries {
		if entry.ID == id {
			clone := *entry
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *MemoryAuditRepository) GetLatestSequenceNumber(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var max int64
	for _, entry := range r.entries {
		if entry.SequenceNum > max {
			max = entry.SequenceNum
		}
	}
	return max, nil
}

func (r *MemoryAuditRepository) List(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*audit.Entry
	for _, entry := range r.entries {
		if filter.Matches(entry) {
			clone := *entry
			matched = append(matched, &clone)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SequenceNum > matched[j].SequenceNum
	})

	return paginate(matched, filter.Offset, filter.Limit), nil
}

func (r *MemoryAuditRepository) ListBySequence(ctx context.Context, from, to int64) ([]*audit.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*audit.Entry
	for _, entry := range r.entries {
		if entry.SequenceNum >= from && entry.SequenceNum <= to {
			clone := *entry
			matched = append(matched, &clone)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SequenceNum < matched[j].SequenceNum
	})
	return matched, nil
}

func (r *MemoryAuditRepository) Count(ctx context.Context, filter audit.Filter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, entry := range r.entries {
		if filter.Matches(entry) {
			count++
		}
	}
	return count, nil
}

// Len reports the number of stored entries
func (r *MemoryAuditRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// All returns a copy of every stored entry in insertion order
func (r *MemoryAuditRepository) All() []*audit.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*audit.Entry, len(r.entries))
	for i, entry := range r.entries {
		clone := *entry
		out[i] = &clone
	}
	return out
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
