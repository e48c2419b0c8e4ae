package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/incident"
)

// MemoryIncidentRepository is a thread-safe in-memory incident.Repository
type MemoryIncidentRepository struct {
	mu        sync.RWMutex
	incidents map[uuid.UUID]*incident.Incident
}

// NewMemoryIncidentRepository creates an empty in-memory incident store
func NewMemoryIncidentRepository() *MemoryIncidentRepository {
	return &MemoryIncidentRepository{incidents: make(map[uuid.UUID]*incident.Incident)}
}

func (r *MemoryIncidentRepository) Save(ctx context.Context, inc *incident.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *inc
	r.incidents[inc.ID] = &clone
	return nil
}

func (r *MemoryIncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*incident.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inc, ok := r.incidents[id]
	if !ok {
		return nil, nil
	}
	clone := *inc
	return &clone, nil
}

func (r *MemoryIncidentRepository) List(ctx context.Context, filter incident.Filter) ([]*incident.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*incident.Incident
	for _, inc := range r.incidents {
		if matchesIncidentFilter(inc, filter) {
			clone := *inc
			matched = append(matched, &clone)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].DetectedAt.After(matched[j].DetectedAt)
	})
	return paginate(matched, filter.Offset, filter.Limit), nil
}

func (r *MemoryIncidentRepository) Count(ctx context.Context, filter incident.Filter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, inc := range r.incidents {
		if matchesIncidentFilter(inc, filter) {
			count++
		}
	}
	return count, nil
}

func matchesIncidentFilter(inc *incident.Incident, f incident.Filter) bool {
	if f.AffectedSystemID != uuid.Nil && inc.AffectedSystemID != f.AffectedSystemID {
		return false
	}
	if len(f.Severities) > 0 {
		found := false
		for _, s := range f.Severities {
			if inc.Severity == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Steps) > 0 {
		found := false
		for _, s := range f.Steps {
			if inc.CurrentStep == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Resolved != nil && inc.IsResolved() != *f.Resolved {
		return false
	}
	if f.Since != nil && inc.DetectedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && inc.DetectedAt.After(*f.Until) {
		return false
	}
	return true
}
