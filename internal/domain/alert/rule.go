package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// RuleType identifies how a rule is evaluated
type RuleType string

const (
	RuleMetricThreshold RuleType = "METRIC_THRESHOLD"
	RuleEventPattern    RuleType = "EVENT_PATTERN"
	RuleComposite       RuleType = "COMPOSITE"
)

// IsValid reports whether the rule type is known
func (t RuleType) IsValid() bool {
	switch t {
	case RuleMetricThreshold, RuleEventPattern, RuleComposite:
		return true
	default:
		return false
	}
}

// RuleSeverity ranks the urgency of alerts a rule produces
type RuleSeverity string

const (
	SeverityInfo     RuleSeverity = "info"
	SeverityWarning  RuleSeverity = "warning"
	SeverityCritical RuleSeverity = "critical"
)

// IsValid reports whether the severity is known
func (s RuleSeverity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Operator compares an observed value against a rule threshold
type Operator string

const (
	OpGreaterThan    Operator = "GT"
	OpGreaterOrEqual Operator = "GTE"
	OpLessThan       Operator = "LT"
	OpLessOrEqual    Operator = "LTE"
	OpEqual          Operator = "EQ"
	OpNotEqual       Operator = "NEQ"
)

// IsValid reports whether the operator is known
func (o Operator) IsValid() bool {
	switch o {
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpEqual, OpNotEqual:
		return true
	default:
		return false
	}
}

// Compare applies the operator to (value, threshold)
func (o Operator) Compare(value, threshold float64) (bool, error) {
	switch o {
	case OpGreaterThan:
		return value > threshold, nil
	case OpGreaterOrEqual:
		return value >= threshold, nil
	case OpLessThan:
		return value < threshold, nil
	case OpLessOrEqual:
		return value <= threshold, nil
	case OpEqual:
		return value == threshold, nil
	case OpNotEqual:
		return value != threshold, nil
	default:
		return false, errors.NewValidationError("INVALID_OPERATOR",
			"comparison operator must be GT, GTE, LT, LTE, EQ or NEQ")
	}
}

// Aggregation combines composite sub-condition results
type Aggregation string

const (
	AggregateAnd Aggregation = "AND"
	AggregateOr  Aggregation = "OR"
)

// Condition is one comparison a rule performs. Metric names come from the
// closed snapshot vocabulary; EventType applies to EVENT_PATTERN rules only.
type Condition struct {
	Metric          string   `json:"metric,omitempty" validate:"required_without=EventType"`
	EventType       string   `json:"event_type,omitempty"`
	Operator        Operator `json:"operator" validate:"required"`
	Threshold       float64  `json:"threshold"`
	TimeWindowHours int      `json:"time_window_hours,omitempty" validate:"gte=0"`
}

// DefaultEventWindowHours applies when an EVENT_PATTERN condition has no window
const DefaultEventWindowHours = 24

// DefaultCooldownMinutes applies when a rule has no explicit cooldown
const DefaultCooldownMinutes = 60

// Rule is persisted alerting configuration
type Rule struct {
	ID       uuid.UUID    `json:"id"`
	Name     string       `json:"name" validate:"required"`
	RuleType RuleType     `json:"rule_type" validate:"required"`
	Severity RuleSeverity `json:"severity" validate:"required"`

	Condition     Condition   `json:"condition"`
	SubConditions []Condition `json:"sub_conditions,omitempty"`
	Aggregation   Aggregation `json:"aggregation,omitempty"`

	IsActive             bool      `json:"is_active"`
	NotificationChannels []Channel `json:"notification_channels,omitempty"`
	CooldownMinutes      int       `json:"cooldown_minutes" validate:"gte=0"`

	TriggerCount    int64      `json:"trigger_count"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRule creates a validated rule, active by default
func NewRule(name string, ruleType RuleType, severity RuleSeverity, condition Condition) (*Rule, error) {
	if name == "" {
		return nil, errors.NewValidationError("MISSING_RULE_NAME", "rule name is required")
	}

	if !ruleType.IsValid() {
		return nil, errors.NewValidationError("INVALID_RULE_TYPE",
			"rule type must be METRIC_THRESHOLD, EVENT_PATTERN or COMPOSITE")
	}

	if !severity.IsValid() {
		return nil, errors.NewValidationError("INVALID_RULE_SEVERITY",
			"severity must be info, warning or critical")
	}

	if !condition.Operator.IsValid() {
		return nil, errors.NewValidationError("INVALID_OPERATOR",
			"condition operator must be known")
	}

	now := time.Now().UTC()
	return &Rule{
		ID:              uuid.New(),
		Name:            name,
		RuleType:        ruleType,
		Severity:        severity,
		Condition:       condition,
		IsActive:        true,
		CooldownMinutes: DefaultCooldownMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Cooldown returns the rule's suppression window
func (r *Rule) Cooldown() time.Duration {
	minutes := r.CooldownMinutes
	if minutes <= 0 {
		minutes = DefaultCooldownMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// InCooldown reports whether the rule fired too recently to evaluate again
func (r *Rule) InCooldown(now time.Time) bool {
	if r.LastTriggeredAt == nil {
		return false
	}
	return now.Sub(*r.LastTriggeredAt) < r.Cooldown()
}

// MarkTriggered records a firing at the given instant
func (r *Rule) MarkTriggered(now time.Time) {
	r.TriggerCount++
	t := now
	r.LastTriggeredAt = &t
	r.UpdatedAt = now
}
