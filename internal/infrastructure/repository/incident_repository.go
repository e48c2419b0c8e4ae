package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/domain/incident"
	"github.com/aimsgrid/governance-engine/internal/domain/values"
)

// IncidentRepository implements incident.Repository on PostgreSQL. The tensor
// position is stored as a JSONB array and validated on the way back out.
type IncidentRepository struct {
	db *pgxpool.Pool
}

// NewIncidentRepository creates a PostgreSQL incident repository
func NewIncidentRepository(db *pgxpool.Pool) *IncidentRepository {
	return &IncidentRepository{db: db}
}

const incidentColumns = `
	id, title, description, affected_system_id, severity, current_step,
	detection_method, occurred_at, detected_at, resolved_at,
	root_cause, corrective_action, lessons_learned, notification_sent,
	tensor_position, created_at, updated_at`

// Save upserts an incident
func (r *IncidentRepository) Save(ctx context.Context, inc *incident.Incident) error {
	positionJSON, err := json.Marshal(inc.TensorPosition)
	if err != nil {
		return errors.NewInternalError("could not marshal tensor position").WithCause(err)
	}

	query := `
		INSERT INTO incidents (
			id, title, description, affected_system_id, severity, current_step,
			detection_method, occurred_at, detected_at, resolved_at,
			root_cause, corrective_action, lessons_learned, notification_sent,
			tensor_position, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			severity = EXCLUDED.severity,
			current_step = EXCLUDED.current_step,
			detection_method = EXCLUDED.detection_method,
			resolved_at = EXCLUDED.resolved_at,
			root_cause = EXCLUDED.root_cause,
			corrective_action = EXCLUDED.corrective_action,
			lessons_learned = EXCLUDED.lessons_learned,
			notification_sent = EXCLUDED.notification_sent,
			tensor_position = EXCLUDED.tensor_position,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		inc.ID, inc.Title, inc.Description, inc.AffectedSystemID,
		string(inc.Severity), string(inc.CurrentStep), string(inc.DetectionMethod),
		inc.OccurredAt, inc.DetectedAt, inc.ResolvedAt,
		inc.RootCause, inc.CorrectiveAction, inc.LessonsLearned, inc.NotificationSent,
		positionJSON, inc.CreatedAt, inc.UpdatedAt,
	)
	return mapWriteError(err, "incident", "incident already exists")
}

// GetByID retrieves an incident by ID, nil when absent
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*incident.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	inc, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapReadError(err, "incident")
	}
	return inc, nil
}

// List retrieves incidents matching the filter, newest detection first
func (r *IncidentRepository) List(ctx context.Context, filter incident.Filter) ([]*incident.Incident, error) {
	where, args := buildIncidentWhere(filter)

	query := `SELECT ` + incidentColumns + ` FROM incidents` + where +
		` ORDER BY detected_at DESC`
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
		return nil, mapReadError(err, "incident")
	}
	defer rows.Close()

	var incidents []*incident.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, mapReadError(err, "incident")
		}
		incidents = append(incidents, inc)
	}
	return incidents, mapReadError(rows.Err(), "incident")
}

// Count returns the number of incidents matching the filter
func (r *IncidentRepository) Count(ctx context.Context, filter incident.Filter) (int64, error) {
	where, args := buildIncidentWhere(filter)

	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM incidents`+where, args...).Scan(&count)
	if err != nil {
		return 0, mapReadError(err, "incident")
	}
	return count, nil
}

func scanIncident(row rowScanner) (*incident.Incident, error) {
	var inc incident.Incident
	var positionJSON []byte

	err := row.Scan(
		&inc.ID, &inc.Title, &inc.Description, &inc.AffectedSystemID,
		&inc.Severity, &inc.CurrentStep, &inc.DetectionMethod,
		&inc.OccurredAt, &inc.DetectedAt, &inc.ResolvedAt,
		&inc.RootCause, &inc.CorrectiveAction, &inc.LessonsLearned, &inc.NotificationSent,
		&positionJSON, &inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(positionJSON) > 0 {
		var position values.TensorPosition
		if err := json.Unmarshal(positionJSON, &position); err != nil {
			return nil, errors.NewInternalError("stored tensor position is malformed").WithCause(err)
		}
		inc.TensorPosition = position
	}

	return &inc, nil
}

func buildIncidentWhere(filter incident.Filter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.AffectedSystemID != uuid.Nil {
		clauses = append(clauses, "affected_system_id = "+arg(filter.AffectedSystemID))
	}
	if len(filter.Severities) > 0 {
		severities := make([]string, len(filter.Severities))
		for i, s := range filter.Severities {
			severities[i] = string(s)
		}
		clauses = append(clauses, "severity = ANY("+arg(severities)+")")
	}
	if len(filter.Steps) > 0 {
		steps := make([]string, len(filter.Steps))
		for i, s := range filter.Steps {
			steps[i] = string(s)
		}
		clauses = append(clauses, "current_step = ANY("+arg(steps)+")")
	}
	if filter.Resolved != nil {
		if *filter.Resolved {
			clauses = append(clauses, "resolved_at IS NOT NULL")
		} else {
			clauses = append(clauses, "resolved_at IS NULL")
		}
	}
	if filter.Since != nil {
		clauses = append(clauses, "detected_at >= "+arg(*filter.Since))
	}
	if filter.Until != nil {
		clauses = append(clauses, "detected_at <= "+arg(*filter.Until))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
