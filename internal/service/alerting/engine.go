package alerting

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/service/metrics"
)

// SnapshotProvider supplies the current metrics snapshot
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, forceRefresh bool) (*metrics.Snapshot, error)
}

// EventCounter counts audit entries for event-pattern rules
type EventCounter interface {
	CountSince(ctx context.Context, eventType audit.EventType, since time.Time) (int64, error)
}

// AuditRecorder records alert lifecycle transitions on the audit trail
type AuditRecorder interface {
	AppendSync(ctx context.Context, entry *audit.Entry) (*audit.Entry, error)
}

// AlertEmitter publishes newly fired alerts on the governance event stream
// with a synchronous audit write.
type AlertEmitter interface {
	EmitAlert(ctx context.Context, a *alert.Alert) error
}

// Engine evaluates alert rules against metrics and audit activity under a
// per-rule cooldown discipline, and owns the alert lifecycle.
type Engine struct {
	ruleRepo  alert.RuleRepository
	alertRepo alert.AlertRepository
	snapshots SnapshotProvider
	counter   EventCounter
	recorder  AuditRecorder
	emitter   AlertEmitter
	notifier  *Notifier
	logger    *zap.Logger

	firedCounter prometheus.Counter
	evalFailures prometheus.Counter

	// now is swappable for tests
	now func() time.Time
}

// NewEngine builds the alert engine. notifier may be nil when no channels are
// configured; recorder and emitter may be nil in evaluation-only deployments.
func NewEngine(
	ruleRepo alert.RuleRepository,
	alertRepo alert.AlertRepository,
	snapshots SnapshotProvider,
	counter EventCounter,
	recorder AuditRecorder,
	emitter AlertEmitter,
	notifier *Notifier,
	logger *zap.Logger,
	reg prometheus.Registerer,
) (*Engine, error) {
	if ruleRepo == nil || alertRepo == nil {
		return nil, errors.NewValidationError("MISSING_REPOSITORY",
			"rule and alert repositories are required")
	}
	if snapshots == nil {
		return nil, errors.NewValidationError("MISSING_SNAPSHOT_PROVIDER",
			"metrics snapshot provider is required")
	}
	if counter == nil {
		return nil, errors.NewValidationError("MISSING_EVENT_COUNTER",
			"audit event counter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		ruleRepo:  ruleRepo,
		alertRepo: alertRepo,
		snapshots: snapshots,
		counter:   counter,
		recorder:  recorder,
		emitter:   emitter,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		firedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "governance",
			Subsystem: "alerting",
			Name:      "alerts_fired_total",
			Help:      "Alerts created by rule evaluation",
		}),
		evalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "governance",
			Subsystem: "alerting",
			Name:      "rule_evaluation_failures_total",
			Help:      "Rules whose evaluation errored",
		}),
	}

	if reg != nil {
		reg.MustRegister(e.firedCounter, e.evalFailures)
	}

	return e, nil
}

// EvaluateAll iterates active rules, skips any rule in cooldown, evaluates the
// rest, and persists one ACTIVE alert per newly triggered rule. A failing rule
// is logged and never aborts the pass. Returns the newly created alerts for
// notification dispatch.
func (e *Engine) EvaluateAll(ctx context.Context) ([]*alert.Alert, error) {
	rules, err := e.ruleRepo.ListActive(ctx)
	if err != nil {
		return nil, errors.NewDependencyError("rule repository",
			"could not list active rules").WithCause(err)
	}

	now := e.now()
	var fired []*alert.Alert

	for _, rule := range rules {
		if rule.InCooldown(now) {
			e.logger.Debug("rule in cooldown, skipped",
				zap.String("rule", rule.Name),
				zap.Timep("last_triggered_at", rule.LastTriggeredAt),
			)
			continue
		}

		triggered, triggerValue, err := e.evaluate(ctx, rule)
		if err != nil {
			e.evalFailures.Inc()
			e.logger.Error("rule evaluation failed",
				zap.String("rule", rule.Name),
				zap.String("rule_type", string(rule.RuleType)),
				zap.Error(err),
			)
			continue
		}
		if !triggered {
			continue
		}

		a, err := e.fire(ctx, rule, triggerValue, now)
		if err != nil {
			e.logger.Error("alert creation failed",
				zap.String("rule", rule.Name),
				zap.Error(err),
			)
			continue
		}
		fired = append(fired, a)
	}

	return fired, nil
}

func (e *Engine) evaluate(ctx context.Context, rule *alert.Rule) (bool, interface{}, error) {
	switch rule.RuleType {
	case alert.RuleMetricThreshold:
		return e.evaluateThreshold(ctx, rule.Condition)
	case alert.RuleEventPattern:
		return e.evaluateEventPattern(ctx, rule.Condition)
	case alert.RuleComposite:
		return e.evaluateComposite(ctx, rule)
	default:
		return false, nil, errors.NewValidationError("UNKNOWN_RULE_TYPE",
			fmt.Sprintf("rule type %q is not evaluable", string(rule.RuleType)))
	}
}

func (e *Engine) evaluateThreshold(ctx context.Context, cond alert.Condition) (bool, interface{}, error) {
	snap, err := e.snapshots.GetSnapshot(ctx, false)
	if err != nil {
		return false, nil, err
	}

	value, err := snap.Resolve(cond.Metric)
	if err != nil {
		return false, nil, err
	}

	triggered, err := cond.Operator.Compare(value, cond.Threshold)
	return triggered, value, err
}

func (e *Engine) evaluateEventPattern(ctx context.Context, cond alert.Condition) (bool, interface{}, error) {
	eventType := audit.EventType(cond.EventType)
	if !eventType.IsValid() {
		return false, nil, errors.NewValidationError("UNKNOWN_EVENT_TYPE",
			fmt.Sprintf("event type %q is not in the governance vocabulary", cond.EventType))
	}

	window := cond.TimeWindowHours
	if window <= 0 {
		window = alert.DefaultEventWindowHours
	}
	since := e.now().Add(-time.Duration(window) * time.Hour)

	count, err := e.counter.CountSince(ctx, eventType, since)
	if err != nil {
		return false, nil, err
	}

	triggered, err := cond.Operator.Compare(float64(count), cond.Threshold)
	return triggered, float64(count), err
}

// evaluateComposite checks every sub-condition as an independent metric
// threshold and combines per the rule's aggregation mode. The recorded trigger
// value is the list of sub-metric values.
func (e *Engine) evaluateComposite(ctx context.Context, rule *alert.Rule) (bool, interface{}, error) {
	if len(rule.SubConditions) == 0 {
		return false, nil, errors.NewValidationError("MISSING_SUB_CONDITIONS",
			"composite rule requires at least one sub-condition")
	}

	snap, err := e.snapshots.GetSnapshot(ctx, false)
	if err != nil {
		return false, nil, err
	}

	values := make([]float64, 0, len(rule.SubConditions))
	results := make([]bool, 0, len(rule.SubConditions))

	for _, cond := range rule.SubConditions {
		value, err := snap.Resolve(cond.Metric)
		if err != nil {
			return false, nil, err
		}
		passed, err := cond.Operator.Compare(value, cond.Threshold)
		if err != nil {
			return false, nil, err
		}
		values = append(values, value)
		results = append(results, passed)
	}

	triggered := rule.Aggregation != alert.AggregateOr
	if rule.Aggregation == alert.AggregateOr {
		for _, passed := range results {
			if passed {
				triggered = true
				break
			}
		}
	} else {
		for _, passed := range results {
			if !passed {
				triggered = false
				break
			}
		}
	}

	return triggered, values, nil
}

func (e *Engine) fire(ctx context.Context, rule *alert.Rule, triggerValue interface{}, now time.Time) (*alert.Alert, error) {
	title := fmt.Sprintf("%s: %s", rule.Severity, rule.Name)
	message := describeTrigger(rule, triggerValue)

	a, err := alert.NewAlert(rule, title, message, triggerValue)
	if err != nil {
		return nil, err
	}

	if err := e.alertRepo.Save(ctx, a); err != nil {
		return nil, errors.NewDependencyError("alert repository",
			"could not persist alert").WithCause(err)
	}

	rule.MarkTriggered(now)
	if err := e.ruleRepo.Save(ctx, rule); err != nil {
		e.logger.Warn("could not persist rule trigger state",
			zap.String("rule", rule.Name),
			zap.Error(err),
		)
	}

	if e.emitter != nil {
		if err := e.emitter.EmitAlert(ctx, a); err != nil {
			e.logger.Error("fired alert audit write failed",
				zap.String("alert_id", a.ID.String()),
				zap.String("rule", rule.Name),
				zap.Error(err),
			)
		}
	}

	e.firedCounter.Inc()
	e.logger.Info("alert fired",
		zap.String("rule", rule.Name),
		zap.String("alert_id", a.ID.String()),
		zap.String("severity", string(a.Severity)),
	)

	return a, nil
}

func describeTrigger(rule *alert.Rule, triggerValue interface{}) string {
	switch rule.RuleType {
	case alert.RuleEventPattern:
		return fmt.Sprintf("event %s count %v crossed threshold %s (%s)",
			rule.Condition.EventType, triggerValue,
			strconv.FormatFloat(rule.Condition.Threshold, 'f', -1, 64),
			rule.Condition.Operator)
	case alert.RuleComposite:
		return fmt.Sprintf("composite rule matched with sub-metric values %v (%s)",
			triggerValue, rule.Aggregation)
	default:
		return fmt.Sprintf("metric %s value %v crossed threshold %s (%s)",
			rule.Condition.Metric, triggerValue,
			strconv.FormatFloat(rule.Condition.Threshold, 'f', -1, 64),
			rule.Condition.Operator)
	}
}

// GetActiveAlerts lists alerts still in the ACTIVE state, newest-first
func (e *Engine) GetActiveAlerts(ctx context.Context) ([]*alert.Alert, error) {
	return e.alertRepo.List(ctx, alert.AlertFilter{
		Statuses: []alert.Status{alert.StatusActive},
	})
}

// GetHistory lists alerts in any state, newest-first, truncated to limit
func (e *Engine) GetHistory(ctx context.Context, limit int) ([]*alert.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	return e.alertRepo.List(ctx, alert.AlertFilter{Limit: limit})
}
