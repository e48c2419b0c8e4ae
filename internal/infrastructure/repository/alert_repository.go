package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// RuleRepository implements alert.RuleRepository on PostgreSQL. Conditions and
// channels are stored as JSONB so the rule shape can evolve without schema
// churn.
type RuleRepository struct {
	db *pgxpool.Pool
}

// NewRuleRepository creates a PostgreSQL alert rule repository
func NewRuleRepository(db *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `
	id, name, rule_type, severity, condition, sub_conditions, aggregation,
	is_active, notification_channels, cooldown_minutes,
	trigger_count, last_triggered_at, created_at, updated_at`

// Save upserts a rule. Rule names are unique.
func (r *RuleRepository) Save(ctx context.Context, rule *alert.Rule) error {
	conditionJSON, err := json.Marshal(rule.Condition)
	if err != nil {
		return errors.NewInternalError("could not marshal condition").WithCause(err)
	}
	subConditionsJSON, err := json.Marshal(rule.SubConditions)
	if err != nil {
		return errors.NewInternalError("could not marshal sub-conditions").WithCause(err)
	}
	channelsJSON, err := json.Marshal(rule.NotificationChannels)
	if err != nil {
		return errors.NewInternalError("could not marshal channels").WithCause(err)
	}

	query := `
		INSERT INTO alert_rules (
			id, name, rule_type, severity, condition, sub_conditions, aggregation,
			is_active, notification_channels, cooldown_minutes,
			trigger_count, last_triggered_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			severity = EXCLUDED.severity,
			condition = EXCLUDED.condition,
			sub_conditions = EXCLUDED.sub_conditions,
			aggregation = EXCLUDED.aggregation,
			is_active = EXCLUDED.is_active,
			notification_channels = EXCLUDED.notification_channels,
			cooldown_minutes = EXCLUDED.cooldown_minutes,
			trigger_count = EXCLUDED.trigger_count,
			last_triggered_at = EXCLUDED.last_triggered_at,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		rule.ID, rule.Name, string(rule.RuleType), string(rule.Severity),
		conditionJSON, subConditionsJSON, string(rule.Aggregation),
		rule.IsActive, channelsJSON, rule.CooldownMinutes,
		rule.TriggerCount, rule.LastTriggeredAt, rule.CreatedAt, rule.UpdatedAt,
	)
	return mapWriteError(err, "alert rule",
		fmt.Sprintf("rule name %q already exists", rule.Name))
}

// GetByID retrieves a rule by ID, nil when absent
func (r *RuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*alert.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapReadError(err, "alert rule")
	}
	return rule, nil
}

// ListActive retrieves every rule in the evaluation set
func (r *RuleRepository) ListActive(ctx context.Context) ([]*alert.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules
		WHERE is_active ORDER BY name ASC`
	return r.queryRules(ctx, query)
}

// List retrieves every configured rule
func (r *RuleRepository) List(ctx context.Context) ([]*alert.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules ORDER BY name ASC`
	return r.queryRules(ctx, query)
}

func (r *RuleRepository) queryRules(ctx context.Context, query string) ([]*alert.Rule, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, mapReadError(err, "alert rule")
	}
	defer rows.Close()

	var rules []*alert.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, mapReadError(err, "alert rule")
		}
		rules = append(rules, rule)
	}
	return rules, mapReadError(rows.Err(), "alert rule")
}

func scanRule(row rowScanner) (*alert.Rule, error) {
	var rule alert.Rule
	var conditionJSON, subConditionsJSON, channelsJSON []byte

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.RuleType, &rule.Severity,
		&conditionJSON, &subConditionsJSON, &rule.Aggregation,
		&rule.IsActive, &channelsJSON, &rule.CooldownMinutes,
		&rule.TriggerCount, &rule.LastTriggeredAt, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(conditionJSON, &rule.Condition); err != nil {
		return nil, errors.NewInternalError("stored condition is malformed").WithCause(err)
	}
	if len(subConditionsJSON) > 0 {
		if err := json.Unmarshal(subConditionsJSON, &rule.SubConditions); err != nil {
			return nil, errors.NewInternalError("stored sub-conditions are malformed").WithCause(err)
		}
	}
	if len(channelsJSON) > 0 {
		if err := json.Unmarshal(channelsJSON, &rule.NotificationChannels); err != nil {
			return nil, errors.NewInternalError("stored channels are malformed").WithCause(err)
		}
	}

	return &rule, nil
}

// AlertRepository implements alert.AlertRepository on PostgreSQL
type AlertRepository struct {
	db *pgxpool.Pool
}

// NewAlertRepository creates a PostgreSQL alert repository
func NewAlertRepository(db *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `
	id, rule_id, severity, status, title, message, trigger_value, metadata,
	triggered_at, acknowledged_by, acknowledged_at, resolved_by, resolved_at,
	notes, notifications_sent`

// Save upserts an alert
func (r *AlertRepository) Save(ctx context.Context, a *alert.Alert) error {
	triggerJSON, err := json.Marshal(a.TriggerValue)
	if err != nil {
		return errors.NewInternalError("could not marshal trigger value").WithCause(err)
	}
	metadataJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return errors.NewInternalError("could not marshal metadata").WithCause(err)
	}
	notificationsJSON, err := json.Marshal(a.NotificationsSent)
	if err != nil {
		return errors.NewInternalError("could not marshal notifications").WithCause(err)
	}

	query := `
		INSERT INTO alerts (
			id, rule_id, severity, status, title, message, trigger_value, metadata,
			triggered_at, acknowledged_by, acknowledged_at, resolved_by, resolved_at,
			notes, notifications_sent
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			acknowledged_by = EXCLUDED.acknowledged_by,
			acknowledged_at = EXCLUDED.acknowledged_at,
			resolved_by = EXCLUDED.resolved_by,
			resolved_at = EXCLUDED.resolved_at,
			notes = EXCLUDED.notes,
			notifications_sent = EXCLUDED.notifications_sent`

	_, err = r.db.Exec(ctx, query,
		a.ID, a.RuleID, string(a.Severity), string(a.Status),
		a.Title, a.Message, triggerJSON, metadataJSON,
		a.TriggeredAt, a.AcknowledgedBy, a.AcknowledgedAt,
		a.ResolvedBy, a.ResolvedAt, a.Notes, notificationsJSON,
	)
	return mapWriteError(err, "alert", "alert already exists")
}

// GetByID retrieves an alert by ID, nil when absent
func (r *AlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	a, err := scanAlert(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapReadError(err, "alert")
	}
	return a, nil
}

// List retrieves alerts matching the filter, newest first
func (r *AlertRepository) List(ctx context.Context, filter alert.AlertFilter) ([]*alert.Alert, error) {
	where, args := buildAlertWhere(filter)

	query := `SELECT ` + alertColumns + ` FROM alerts` + where +
		` ORDER BY triggered_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapReadError(err, "alert")
	}
	defer rows.Close()

	var alerts []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, mapReadError(err, "alert")
		}
		alerts = append(alerts, a)
	}
	return alerts, mapReadError(rows.Err(), "alert")
}

// GetLatestForRule retrieves the most recently triggered alert for a rule, or
// nil when the rule has never fired
func (r *AlertRepository) GetLatestForRule(ctx context.Context, ruleID uuid.UUID) (*alert.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE rule_id = $1 ORDER BY triggered_at DESC LIMIT 1`

	a, err := scanAlert(r.db.QueryRow(ctx, query, ruleID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapReadError(err, "alert")
	}
	return a, nil
}

// Count returns the number of alerts matching the filter
func (r *AlertRepository) Count(ctx context.Context, filter alert.AlertFilter) (int64, error) {
	where, args := buildAlertWhere(filter)

	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM alerts`+where, args...).Scan(&count)
	if err != nil {
		return 0, mapReadError(err, "alert")
	}
	return count, nil
}

func scanAlert(row rowScanner) (*alert.Alert, error) {
	var a alert.Alert
	var triggerJSON, metadataJSON, notificationsJSON []byte

	err := row.Scan(
		&a.ID, &a.RuleID, &a.Severity, &a.Status,
		&a.Title, &a.Message, &triggerJSON, &metadataJSON,
		&a.TriggeredAt, &a.AcknowledgedBy, &a.AcknowledgedAt,
		&a.ResolvedBy, &a.ResolvedAt, &a.Notes, &notificationsJSON,
	)
	if err != nil {
		return nil, err
	}

	if len(triggerJSON) > 0 {
		if err := json.Unmarshal(triggerJSON, &a.TriggerValue); err != nil {
			return nil, errors.NewInternalError("stored trigger value is malformed").WithCause(err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
			return nil, errors.NewInternalError("stored metadata is malformed").WithCause(err)
		}
	}
	if len(notificationsJSON) > 0 {
		if err := json.Unmarshal(notificationsJSON, &a.NotificationsSent); err != nil {
			return nil, errors.NewInternalError("stored notifications are malformed").WithCause(err)
		}
	}

	return &a, nil
}

func buildAlertWhere(filter alert.AlertFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.RuleID != uuid.Nil {
		clauses = append(clauses, "rule_id = "+arg(filter.RuleID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		clauses = append(clauses, "status = ANY("+arg(statuses)+")")
	}
	if len(filter.Severities) > 0 {
		severities := make([]string, len(filter.Severities))
		for i, s := range filter.Severities {
			severities[i] = string(s)
		}
		clauses = append(clauses, "severity = ANY("+arg(severities)+")")
	}
	if filter.Since != nil {
		clauses = append(clauses, "triggered_at >= "+arg(*filter.Since))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
