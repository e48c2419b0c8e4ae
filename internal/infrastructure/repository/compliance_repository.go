package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/domain/governance"
)

// ComplianceRepository implements governance.ComplianceRepository on
// PostgreSQL. One row per (system, clause) pair; re-assessment overwrites.
type ComplianceRepository struct {
	db *pgxpool.Pool
}

// NewComplianceRepository creates a PostgreSQL compliance state repository
func NewComplianceRepository(db *pgxpool.Pool) *ComplianceRepository {
	return &ComplianceRepository{db: db}
}

const complianceColumns = `
	id, system_id, clause_id, status, assessor_id, notes, assessed_at`

const complianceUpsert = `
	INSERT INTO compliance_states (
		id, system_id, clause_id, status, assessor_id, notes, assessed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (system_id, clause_id) DO UPDATE SET
		status = EXCLUDED.status,
		assessor_id = EXCLUDED.assessor_id,
		notes = EXCLUDED.notes,
		assessed_at = EXCLUDED.assessed_at`

// Save upserts one clause assessment
func (r *ComplianceRepository) Save(ctx context.Context, state *governance.ComplianceState) error {
	_, err := r.db.Exec(ctx, complianceUpsert,
		state.ID, state.SystemID, state.ClauseID,
		string(state.Status), state.AssessorID, state.Notes, state.AssessedAt,
	)
	return mapWriteError(err, "compliance state", "assessment already exists")
}

// SaveBatch upserts multiple assessments atomically
func (r *ComplianceRepository) SaveBatch(ctx context.Context, states []*governance.ComplianceState) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.NewDependencyError("database", "could not begin transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	for _, state := range states {
		if _, err := tx.Exec(ctx, complianceUpsert,
			state.ID, state.SystemID, state.ClauseID,
			string(state.Status), state.AssessorID, state.Notes, state.AssessedAt,
		); err != nil {
			return mapWriteError(err, "compliance state", "assessment already exists")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.NewDependencyError("database", "could not commit batch").WithCause(err)
	}
	return nil
}

// List retrieves assessments matching the filter, most recent first
func (r *ComplianceRepository) List(ctx context.Context, filter governance.ComplianceFilter) ([]*governance.ComplianceState, error) {
	where, args := buildComplianceWhere(filter)

	query := `SELECT ` + complianceColumns + ` FROM compliance_states` + where +
		` ORDER BY assessed_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return r.queryStates(ctx, query, args)
}

// ListBySystem retrieves every assessment for one system
func (r *ComplianceRepository) ListBySystem(ctx context.Context, systemID uuid.UUID) ([]*governance.ComplianceState, error) {
	query := `SELECT ` + complianceColumns + ` FROM compliance_states
		WHERE system_id = $1 ORDER BY clause_id ASC`
	return r.queryStates(ctx, query, []interface{}{systemID})
}

// Count returns the number of assessments matching the filter
func (r *ComplianceRepository) Count(ctx context.Context, filter governance.ComplianceFilter) (int64, error) {
	where, args := buildComplianceWhere(filter)

	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM compliance_states`+where, args...).Scan(&count)
	if err != nil {
		return 0, mapReadError(err, "compliance state")
	}
	return count, nil
}

func (r *ComplianceRepository) queryStates(ctx context.Context, query string, args []interface{}) ([]*governance.ComplianceState, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapReadError(err, "compliance state")
	}
	defer rows.Close()

	var states []*governance.ComplianceState
	for rows.Next() {
		var s governance.ComplianceState
		if err := rows.Scan(
			&s.ID, &s.SystemID, &s.ClauseID, &s.Status,
			&s.AssessorID, &s.Notes, &s.AssessedAt,
		); err != nil {
			return nil, mapReadError(err, "compliance state")
		}
		states = append(states, &s)
	}
	return states, mapReadError(rows.Err(), "compliance state")
}

func buildComplianceWhere(filter governance.ComplianceFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SystemID != uuid.Nil {
		clauses = append(clauses, "system_id = "+arg(filter.SystemID))
	}
	if filter.ClauseID != "" {
		clauses = append(clauses, "clause_id = "+arg(filter.ClauseID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		clauses = append(clauses, "status = ANY("+arg(statuses)+")")
	}
	if filter.Since != nil {
		clauses = append(clauses, "assessed_at >= "+arg(*filter.Since))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
