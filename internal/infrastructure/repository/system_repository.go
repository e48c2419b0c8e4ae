package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimsgrid/governance-engine/internal/domain/governance"
)

// SystemRepository implements governance.SystemRepository on PostgreSQL
type SystemRepository struct {
	db *pgxpool.Pool
}

// NewSystemRepository creates a PostgreSQL AI system repository
func NewSystemRepository(db *pgxpool.Pool) *SystemRepository {
	return &SystemRepository{db: db}
}

const systemColumns = `
	id, name, description, purpose, risk_category, oversight_level,
	owner_id, registered_at, updated_at`

// Save upserts a system registration. A duplicate name on a different system
// is a conflict.
func (r *SystemRepository) Save(ctx context.Context, system *governance.AISystem) error {
	query := `
		INSERT INTO ai_systems (
			id, name, description, purpose, risk_category, oversight_level,
			owner_id, registered_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			purpose = EXCLUDED.purpose,
			risk_category = EXCLUDED.risk_category,
			oversight_level = EXCLUDED.oversight_level,
			owner_id = EXCLUDED.owner_id,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		system.ID,
		system.Name,
		system.Description,
		system.Purpose,
		string(system.RiskCategory),
		string(system.OversightLevel),
		system.OwnerID,
		system.RegisteredAt,
		system.UpdatedAt,
	)
	return mapWriteError(err, "AI system",
		fmt.Sprintf("system name %q is already registered", system.Name))
}

// GetByID retrieves a system by ID, nil when absent
func (r *SystemRepository) GetByID(ctx context.Context, id uuid.UUID) (*governance.AISystem, error) {
	query := `SELECT ` + systemColumns + ` FROM ai_systems WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByName retrieves a system by its unique name, nil when absent
func (r *SystemRepository) GetByName(ctx context.Context, name string) (*governance.AISystem, error) {
	query := `SELECT ` + systemColumns + ` FROM ai_systems WHERE name = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, name))
}

// List retrieves systems matching the filter, newest registration first
func (r *SystemRepository) List(ctx context.Context, filter governance.SystemFilter) ([]*governance.AISystem, error) {
	where, args := buildSystemWhere(filter)

	query := `SELECT ` + systemColumns + ` FROM ai_systems` + where +
		` ORDER BY registered_at DESC`
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
		return nil, mapReadError(err, "AI system")
	}
	defer rows.Close()

	var systems []*governance.AISystem
	for rows.Next() {
		var s governance.AISystem
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Description, &s.Purpose,
			&s.RiskCategory, &s.OversightLevel,
			&s.OwnerID, &s.RegisteredAt, &s.UpdatedAt,
		); err != nil {
			return nil, mapReadError(err, "AI system")
		}
		systems = append(systems, &s)
	}
	return systems, mapReadError(rows.Err(), "AI system")
}

// Count returns the number of systems matching the filter
func (r *SystemRepository) Count(ctx context.Context, filter governance.SystemFilter) (int64, error) {
	where, args := buildSystemWhere(filter)

	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ai_systems`+where, args...).Scan(&count)
	if err != nil {
		return 0, mapReadError(err, "AI system")
	}
	return count, nil
}

func (r *SystemRepository) scanOne(row rowScanner) (*governance.AISystem, error) {
	var s governance.AISystem
	err := row.Scan(
		&s.ID, &s.Name, &s.Description, &s.Purpose,
		&s.RiskCategory, &s.OversightLevel,
		&s.OwnerID, &s.RegisteredAt, &s.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapReadError(err, "AI system")
	}
	return &s, nil
}

func buildSystemWhere(filter governance.SystemFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.RiskCategories) > 0 {
		categories := make([]string, len(filter.RiskCategories))
		for i, c := range filter.RiskCategories {
			categories[i] = string(c)
		}
		clauses = append(clauses, "risk_category = ANY("+arg(categories)+")")
	}
	if len(filter.OversightLevels) > 0 {
		levels := make([]string, len(filter.OversightLevels))
		for i, l := range filter.OversightLevels {
			levels[i] = string(l)
		}
		clauses = append(clauses, "oversight_level = ANY("+arg(levels)+")")
	}
	if filter.Name != "" {
		clauses = append(clauses, "name = "+arg(filter.Name))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
