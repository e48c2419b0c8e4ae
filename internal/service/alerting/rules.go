package alerting

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/service/metrics"
)

var ruleValidate = validator.New()

// CreateRuleInput carries everything needed to register a rule
type CreateRuleInput struct {
	Name     string             `json:"name" validate:"required,min=3,max=200"`
	RuleType alert.RuleType     `json:"rule_type" validate:"required"`
	Severity alert.RuleSeverity `json:"severity" validate:"required"`

	Condition     alert.Condition   `json:"condition"`
	SubConditions []alert.Condition `json:"sub_conditions,omitempty" validate:"dive"`
	Aggregation   alert.Aggregation `json:"aggregation,omitempty"`

	NotificationChannels []alert.Channel `json:"notification_channels,omitempty"`
	CooldownMinutes      int             `json:"cooldown_minutes" validate:"gte=0"`
}

// CreateRule validates and persists a new alerting rule. Metric names must
// come from the snapshot vocabulary and event types from the governance event
// vocabulary, so a typo fails at creation instead of silently never firing.
func (e *Engine) CreateRule(ctx context.Context, input CreateRuleInput) (*alert.Rule, error) {
	if err := ruleValidate.Struct(input); err != nil {
		return nil, errors.NewValidationError("INVALID_RULE_INPUT", err.Error())
	}

	if err := validateConditions(input); err != nil {
		return nil, err
	}

	rule, err := alert.NewRule(input.Name, input.RuleType, input.Severity, input.Condition)
	if err != nil {
		return nil, err
	}

	rule.SubConditions = input.SubConditions
	rule.Aggregation = input.Aggregation
	rule.NotificationChannels = input.NotificationChannels
	if input.CooldownMinutes > 0 {
		rule.CooldownMinutes = input.CooldownMinutes
	}

	if err := e.ruleRepo.Save(ctx, rule); err != nil {
		return nil, errors.NewDependencyError("rule repository",
			"could not persist rule").WithCause(err)
	}

	e.logger.Info("alert rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("name", rule.Name),
		zap.String("rule_type", string(rule.RuleType)),
	)

	return rule, nil
}

func validateConditions(input CreateRuleInput) error {
	switch input.RuleType {
	case alert.RuleMetricThreshold:
		return validateMetricCondition(input.Condition)

	case alert.RuleEventPattern:
		if input.Condition.EventType == "" {
			return errors.NewValidationError("MISSING_EVENT_TYPE",
				"event pattern rules require an event type")
		}
		if !audit.EventType(input.Condition.EventType).IsValid() {
			return errors.NewValidationError("UNKNOWN_EVENT_TYPE",
				fmt.Sprintf("event type %q is not in the governance vocabulary", input.Condition.EventType))
		}
		if !input.Condition.Operator.IsValid() {
			return errors.NewValidationError("INVALID_OPERATOR", "condition operator must be known")
		}
		return nil

	case alert.RuleComposite:
		if len(input.SubConditions) < 2 {
			return errors.NewValidationError("MISSING_SUB_CONDITIONS",
				"composite rules require at least two sub-conditions")
		}
		if input.Aggregation != alert.AggregateAnd && input.Aggregation != alert.AggregateOr {
			return errors.NewValidationError("INVALID_AGGREGATION",
				"composite rules require AND or OR aggregation")
		}
		for _, cond := range input.SubConditions {
			if err := validateMetricCondition(cond); err != nil {
				return err
			}
		}
		return nil

	default:
		return errors.NewValidationError("INVALID_RULE_TYPE",
			"rule type must be METRIC_THRESHOLD, EVENT_PATTERN or COMPOSITE")
	}
}

func validateMetricCondition(cond alert.Condition) error {
	if cond.Metric == "" {
		return errors.NewValidationError("MISSING_METRIC", "condition requires a metric name")
	}
	if !metrics.IsKnownMetric(cond.Metric) {
		return errors.NewValidationError("UNKNOWN_METRIC",
			fmt.Sprintf("metric %q is not in the snapshot vocabulary", cond.Metric))
	}
	if !cond.Operator.IsValid() {
		return errors.NewValidationError("INVALID_OPERATOR", "condition operator must be known")
	}
	return nil
}

// SetRuleActive toggles a rule in or out of the evaluation set
func (e *Engine) SetRuleActive(ctx context.Context, ruleID uuid.UUID, active bool) (*alert.Rule, error) {
	rule, err := e.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, errors.NewNotFoundError("alert rule")
	}

	rule.IsActive = active
	rule.UpdatedAt = e.now()

	if err := e.ruleRepo.Save(ctx, rule); err != nil {
		return nil, errors.NewDependencyError("rule repository",
			"could not persist rule state").WithCause(err)
	}

	return rule, nil
}

// ListRules returns every configured rule
func (e *Engine) ListRules(ctx context.Context) ([]*alert.Rule, error) {
	return e.ruleRepo.List(ctx)
}
