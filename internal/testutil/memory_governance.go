package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/domain/governance"
)

// MemorySystemRepository is a thread-safe in-memory
// governance.SystemRepository for tests. Save rejects duplicate names the way
// the PostgreSQL unique index would.
type MemorySystemRepository struct {
	mu      sync.RWMutex
	systems map[uuid.UUID]*governance.AISystem
}

// NewMemorySystemRepository creates an empty in-memory system store
func NewMemorySystemRepository() *MemorySystemRepository {
	return &MemorySystemRepository{systems: make(map[uuid.UUID]*governance.AISystem)}
}

func (r *MemorySystemRepository) Save(ctx context.Context, system *governance.AISystem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.systems {
		if existing.Name == system.Name && id != system.ID {
			return errors.NewConflictError("system name " + system.Name + " is already registered")
		}
	}

	clone := *system
	r.systems[system.ID] = &clone
	return nil
}

func (r *MemorySystemRepository) GetByID(ctx context.Context, id uuid.UUID) (*governance.AISystem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	system, ok := r.systems[id]
	if !ok {
		return nil, nil
	}
	clone := *system
	return &clone, nil
}

func (r *MemorySystemRepository) GetByName(ctx context.Context, name string) (*governance.AISystem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, system := range r.systems {
		if system.Name == name {
			clone := *system
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *MemorySystemRepository) List(ctx context.Context, filter governance.SystemFilter) ([]*governance.AISystem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*governance.AISystem
	for _, system := range r.systems {
		if matchesSystemFilter(system, filter) {
			clone := *system
			matched = append(matched, &clone)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].RegisteredAt.After(matched[j].RegisteredAt)
	})
	return paginate(matched, filter.Offset, filter.Limit), nil
}

func (r *MemorySystemRepository) Count(ctx context.Context, filter governance.SystemFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, system := range r.systems {
		if matchesSystemFilter(system, filter) {
			count++
		}
	}
	return count, nil
}

func matchesSystemFilter(s *governance.AISystem, f governance.SystemFilter) bool {
	if len(f.RiskCategories) > 0 && !containsRisk(f.RiskCategories, s.RiskCategory) {
		return false
	}
	if len(f.OversightLevels) > 0 && !containsOversight(f.OversightLevels, s.OversightLevel) {
		return false
	}
	if f.Name != "" && s.Name != f.Name {
		return false
	}
	return true
}

func containsRisk(haystack []governance.RiskCategory, needle governance.RiskCategory) bool {
	for _, c := range haystack {
		if c == needle {
			return true
		}
	}
	return false
}

func containsOversight(haystack []governance.OversightLevel, needle governance.OversightLevel) bool {
	for _, l := range haystack {
		if l == needle {
			return true
		}
	}
	return false
}

// MemoryComplianceRepository is a thread-safe in-memory
// governance.ComplianceRepository keyed by (system, clause)
type MemoryComplianceRepository struct {
	mu     sync.RWMutex
	states map[string]*governance.ComplianceState

	// FailSaves makes writes return FailErr; FailReads does the same for
	// List/ListBySystem/Count
	FailSaves bool
	FailReads bool
	FailErr   error
}

// NewMemoryComplianceRepository creates an empty in-memory compliance store
func NewMemoryComplianceRepository() *MemoryComplianceRepository {
	return &MemoryComplianceRepository{states: make(map[string]*governance.ComplianceState)}
}

func complianceKey(systemID uuid.UUID, clauseID string) string {
	return systemID.String() + "/" + clauseID
}

func (r *MemoryComplianceRepository) Save(ctx context.Context, state *governance.ComplianceState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailSaves {
		return r.FailErr
	}
	clone := *state
	r.states[complianceKey(state.SystemID, state.ClauseID)] = &clone
	return nil
}

func (r *MemoryComplianceRepository) SaveBatch(ctx context.Context, states []*governance.ComplianceState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailSaves {
		return r.FailErr
	}
	for _, state := range states {
		clone := *state
		r.states[complianceKey(state.SystemID, state.ClauseID)] = &clone
	}
	return nil
}

func (r *MemoryComplianceRepository) List(ctx context.Context, filter governance.ComplianceFilter) ([]*governance.ComplianceState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.FailReads {
		return nil, r.FailErr
	}

	var matched []*governance.ComplianceState
	for _, state := range r.states {
		if matchesComplianceFilter(state, filter) {
			clone := *state
			matched = append(matched, &clone)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].AssessedAt.After(matched[j].AssessedAt)
	})
	return paginate(matched, filter.Offset, filter.Limit), nil
}

func (r *MemoryComplianceRepository) ListBySystem(ctx context.Context, systemID uuid.UUID) ([]*governance.ComplianceState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.FailReads {
		return nil, r.FailErr
	}

	var matched []*governance.ComplianceState
	for _, state := range r.states {
		if state.SystemID == systemID {
			clone := *state
			matched = append(matched, &clone)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ClauseID < matched[j].ClauseID
	})
	return matched, nil
}

func (r *MemoryComplianceRepository) Count(ctx context.Context, filter governance.ComplianceFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.FailReads {
		return 0, r.FailErr
	}

	var count int64
	for _, state := range r.states {
		if matchesComplianceFilter(state, filter) {
			count++
		}
	}
	return count, nil
}

func matchesComplianceFilter(s *governance.ComplianceState, f governance.ComplianceFilter) bool {
	if f.SystemID != uuid.Nil && s.SystemID != f.SystemID {
		return false
	}
	if f.ClauseID != "" && s.ClauseID != f.ClauseID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, status := range f.Statuses {
			if s.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && s.AssessedAt.Before(*f.Since) {
		return false
	}
	return true
}

// MemoryOversightRepository is a thread-safe in-memory
// governance.OversightRepository
type MemoryOversightRepository struct {
	mu      sync.RWMutex
	actions []*governance.OversightAction
}

// NewMemoryOversightRepository creates an empty in-memory oversight store
func NewMemoryOversightRepository() *MemoryOversightRepository {
	return &MemoryOversightRepository{}
}

func (r *MemoryOversightRepository) Save(ctx context.Context, action *governance.OversightAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *action
	r.actions = append(r.actions, &clone)
	return nil
}

func (r *MemoryOversightRepository) List(ctx context.Context, filter governance.OversightFilter) ([]*governance.OversightAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*governance.OversightAction
	for _, action := range r.actions {
		if matchesOversightFilter(action, filter) {
			clone := *action
			matched = append(matched, &clone)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].RecordedAt.After(matched[j].RecordedAt)
	})
	return paginate(matched, filter.Offset, filter.Limit), nil
}

func (r *MemoryOversightRepository) Count(ctx context.Context, filter governance.OversightFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, action := range r.actions {
		if matchesOversightFilter(action, filter) {
			count++
		}
	}
	return count, nil
}

func matchesOversightFilter(a *governance.OversightAction, f governance.OversightFilter) bool {
	if f.SystemID != uuid.Nil && a.SystemID != f.SystemID {
		return false
	}
	if len(f.ActionTypes) > 0 {
		found := false
		for _, t := range f.ActionTypes {
			if a.ActionType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ActorID != "" && a.ActorID != f.ActorID {
		return false
	}
	if f.Since != nil && a.RecordedAt.Before(*f.Since) {
		return false
	}
	return true
}
