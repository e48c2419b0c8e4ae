package fixtures

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
)

// RuleBuilder builds test alert Rule entities
type RuleBuilder struct {
	name            string
	ruleType        alert.RuleType
	severity        alert.RuleSeverity
	condition       alert.Condition
	subConditions   []alert.Condition
	aggregation     alert.Aggregation
	channels        []alert.Channel
	cooldownMinutes int
	lastTriggeredAt *time.Time
	inactive        bool
}

// NewRuleBuilder creates a builder for a metric threshold rule with defaults
func NewRuleBuilder() *RuleBuilder {
	return &RuleBuilder{
		name:     fmt.Sprintf("test-rule-%d", time.Now().UnixNano()),
		ruleType: alert.RuleMetricThreshold,
		severity: alert.SeverityWarning,
		condition: alert.Condition{
			Metric:    "incidentsOpen",
			Operator:  alert.OpGreaterThan,
			Threshold: 5,
		},
	}
}

func (b *RuleBuilder) WithName(name string) *RuleBuilder {
	b.name = name
	return b
}

func (b *RuleBuilder) WithSeverity(severity alert.RuleSeverity) *RuleBuilder {
	b.severity = severity
	return b
}

func (b *RuleBuilder) WithCondition(condition alert.Condition) *RuleBuilder {
	b.condition = condition
	return b
}

// AsEventPattern turns the rule into an event pattern rule
func (b *RuleBuilder) AsEventPattern(eventType string, operator alert.Operator, threshold float64, windowHours int) *RuleBuilder {
	b.ruleType = alert.RuleEventPattern
	b.condition = alert.Condition{
		EventType:       eventType,
		Operator:        operator,
		Threshold:       threshold,
		TimeWindowHours: windowHours,
	}
	return b
}

// AsComposite turns the rule into a composite rule
func (b *RuleBuilder) AsComposite(aggregation alert.Aggregation, subConditions ...alert.Condition) *RuleBuilder {
	b.ruleType = alert.RuleComposite
	b.aggregation = aggregation
	b.subConditions = subConditions
	return b
}

func (b *RuleBuilder) WithChannels(channels ...alert.Channel) *RuleBuilder {
	b.channels = channels
	return b
}

func (b *RuleBuilder) WithCooldown(minutes int) *RuleBuilder {
	b.cooldownMinutes = minutes
	return b
}

// TriggeredAt backdates the last firing for cooldown tests
func (b *RuleBuilder) TriggeredAt(t time.Time) *RuleBuilder {
	b.lastTriggeredAt = &t
	return b
}

func (b *RuleBuilder) Inactive() *RuleBuilder {
	b.inactive = true
	return b
}

// Build creates the rule, failing the test on invalid configuration
func (b *RuleBuilder) Build(t *testing.T) *alert.Rule {
	t.Helper()

	rule, err := alert.NewRule(b.name, b.ruleType, b.severity, b.condition)
	require.NoError(t, err)

	rule.SubConditions = b.subConditions
	rule.Aggregation = b.aggregation
	rule.NotificationChannels = b.channels
	if b.cooldownMinutes > 0 {
		rule.CooldownMinutes = b.cooldownMinutes
	}
	if b.lastTriggeredAt != nil {
		rule.LastTriggeredAt = b.lastTriggeredAt
		rule.TriggerCount = 1
	}
	rule.IsActive = !b.inactive
	return rule
}
