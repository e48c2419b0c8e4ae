package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// MemoryRuleRepository is a thread-safe in-memory alert.RuleRepository
type MemoryRuleRepository struct {
	mu    sync.RWMutex
	rules map[uuid.UUID]*alert.Rule
}

// NewMemoryRuleRepository creates an empty in-memory rule store
func NewMemoryRuleRepository() *MemoryRuleRepository {
	return &MemoryRuleRepository{rules: make(map[uuid.UUID]*alert.Rule)}
}

func (r *MemoryRuleRepository) Save(ctx context.Context, rule *alert.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.rules {
		if existing.Name == rule.Name && id != rule.ID {
			return errors.NewConflictError("rule name " + rule.Name + " already exists")
		}
	}

	clone := *rule
	r.rules[rule.ID] = &clone
	return nil
}

func (r *MemoryRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*alert.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return nil, nil
	}
	clone := *rule
	return &clone, nil
}

func (r *MemoryRuleRepository) ListActive(ctx context.Context) ([]*alert.Rule, error) {
	return r.list(func(rule *alert.Rule) bool { return rule.IsActive })
}

func (r *MemoryRuleRepository) List(ctx context.Context) ([]*alert.Rule, error) {
	return r.list(func(*alert.Rule) bool { return true })
}

func (r *MemoryRuleRepository) list(keep func(*alert.Rule) bool) ([]*alert.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rules []*alert.Rule
	for _, rule := range r.rules {
		if keep(rule) {
			clone := *rule
			rules = append(rules, &clone)
		}
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Name < rules[j].Name
	})
	return rules, nil
}

// MemoryAlertRepository is a thread-safe in-memory alert.AlertRepository
type MemoryAlertRepository struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]*alert.Alert
}

// NewMemoryAlertRepository creates an empty in-memory alert store
func NewMemoryAlertRepository() *MemoryAlertRepository {
	return &MemoryAlertRepository{alerts: make(map[uuid.UUID]*alert.Alert)}
}

func (r *MemoryAlertRepository) Save(ctx context.Context, a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *a
	r.alerts[a.ID] = &clone
	return nil
}

func (r *MemoryAlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, nil
	}
	clone := *a
	return &clone, nil
}

func (r *MemoryAlertRepository) List(ctx context.Context, filter alert.AlertFilter) ([]*alert.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*alert.Alert
	for _, a := range r.alerts {
		if matchesAlertFilter(a, filter) {
			clone := *a
			matched = append(matched, &clone)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].TriggeredAt.After(matched[j].TriggeredAt)
	})
	return paginate(matched, filter.Offset, filter.Limit), nil
}

func (r *MemoryAlertRepository) GetLatestForRule(ctx context.Context, ruleID uuid.UUID) (*alert.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *alert.Alert
	for _, a := range r.alerts {
		if a.RuleID != ruleID {
			continue
		}
		if latest == nil || a.TriggeredAt.After(latest.TriggeredAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (r *MemoryAlertRepository) Count(ctx context.Context, filter alert.AlertFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, a := range r.alerts {
		if matchesAlertFilter(a, filter) {
			count++
		}
	}
	return count, nil
}

func matchesAlertFilter(a *alert.Alert, f alert.AlertFilter) bool {
	if f.RuleID != uuid.Nil && a.RuleID != f.RuleID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Severities) > 0 {
		found := false
		for _, s := range f.Severities {
			if a.Severity == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && a.TriggeredAt.Before(*f.Since) {
		return false
	}
	return true
}
