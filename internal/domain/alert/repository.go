package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RuleRepository persists alerting configuration
type RuleRepository interface {
	Save(ctx context.Context, rule *Rule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	ListActive(ctx context.Context) ([]*Rule, error)
	List(ctx context.Context) ([]*Rule, error)
}

// AlertFilter narrows alert queries. Zero values mean "no constraint".
type AlertFilter struct {
	RuleID     uuid.UUID      `json:"rule_id,omitempty"`
	Statuses   []Status       `json:"statuses,omitempty"`
	Severities []RuleSeverity `json:"severities,omitempty"`
	Since      *time.Time     `json:"since,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Offset     int            `json:"offset,omitempty"`
}

// AlertRepository persists fired alerts
type AlertRepository interface {
	Save(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	List(ctx context.Context, filter AlertFilter) ([]*Alert, error)
	// GetLatestForRule returns the most recently triggered alert for a rule,
	// or nil when the rule has never fired
	GetLatestForRule(ctx context.Context, ruleID uuid.UUID) (*Alert, error)
	Count(ctx context.Context, filter AlertFilter) (int64, error)
}
