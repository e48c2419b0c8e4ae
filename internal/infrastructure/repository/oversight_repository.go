package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimsgrid/governance-engine/internal/domain/governance"
)

// OversightRepository implements governance.OversightRepository on PostgreSQL.
// Oversight records are append-only.
type OversightRepository struct {
	db *pgxpool.Pool
}

// NewOversightRepository creates a PostgreSQL oversight action repository
func NewOversightRepository(db *pgxpool.Pool) *OversightRepository {
	return &OversightRepository{db: db}
}

const oversightColumns = `
	id, system_id, action_type, actor_id, reason, outcome, recorded_at`

// Save persists one oversight action
func (r *OversightRepository) Save(ctx context.Context, action *governance.OversightAction) error {
	query := `
		INSERT INTO oversight_actions (
			id, system_id, action_type, actor_id, reason, outcome, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		action.ID, action.SystemID, string(action.ActionType),
		action.ActorID, action.Reason, action.Outcome, action.RecordedAt,
	)
	return mapWriteError(err, "oversight action", "oversight action already recorded")
}

// List retrieves actions matching the filter, most recent first
func (r *OversightRepository) List(ctx context.Context, filter governance.OversightFilter) ([]*governance.OversightAction, error) {
	where, args := buildOversightWhere(filter)

	query := `SELECT ` + oversightColumns + ` FROM oversight_actions` + where +
		` ORDER BY recorded_at DESC`
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
		return nil, mapReadError(err, "oversight action")
	}
	defer rows.Close()

	var actions []*governance.OversightAction
	for rows.Next() {
		var a governance.OversightAction
		if err := rows.Scan(
			&a.ID, &a.SystemID, &a.ActionType,
			&a.ActorID, &a.Reason, &a.Outcome, &a.RecordedAt,
		); err != nil {
			return nil, mapReadError(err, "oversight action")
		}
		actions = append(actions, &a)
	}
	return actions, mapReadError(rows.Err(), "oversight action")
}

// Count returns the number of actions matching the filter
func (r *OversightRepository) Count(ctx context.Context, filter governance.OversightFilter) (int64, error) {
	where, args := buildOversightWhere(filter)

	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM oversight_actions`+where, args...).Scan(&count)
	if err != nil {
		return 0, mapReadError(err, "oversight action")
	}
	return count, nil
}

func buildOversightWhere(filter governance.OversightFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SystemID != uuid.Nil {
		clauses = append(clauses, "system_id = "+arg(filter.SystemID))
	}
	if len(filter.ActionTypes) > 0 {
		types := make([]string, len(filter.ActionTypes))
		for i, t := range filter.ActionTypes {
			types[i] = string(t)
		}
		clauses = append(clauses, "action_type = ANY("+arg(types)+")")
	}
	if filter.ActorID != "" {
		clauses = append(clauses, "actor_id = "+arg(filter.ActorID))
	}
	if filter.Since != nil {
		clauses = append(clauses, "recorded_at >= "+arg(*filter.Since))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
