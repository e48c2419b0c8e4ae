package governance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SystemFilter narrows system queries. Zero values mean "no constraint".
type SystemFilter struct {
	RiskCategories  []RiskCategory   `json:"risk_categories,omitempty"`
	OversightLevels []OversightLevel `json:"oversight_levels,omitempty"`
	Name            string           `json:"name,omitempty"`
	Limit           int              `json:"limit,omitempty"`
	Offset          int              `json:"offset,omitempty"`
}

// SystemRepository persists AI system registrations. Save must reject a
// duplicate system name with a conflict error.
type SystemRepository interface {
	Save(ctx context.Context, system *AISystem) error
	GetByID(ctx context.Context, id uuid.UUID) (*AISystem, error)
	GetByName(ctx context.Context, name string) (*AISystem, error)
	List(ctx context.Context, filter SystemFilter) ([]*AISystem, error)
	Count(ctx context.Context, filter SystemFilter) (int64, error)
}

// ComplianceFilter narrows compliance state queries
type ComplianceFilter struct {
	SystemID uuid.UUID          `json:"system_id,omitempty"`
	ClauseID string             `json:"clause_id,omitempty"`
	Statuses []ComplianceStatus `json:"statuses,omitempty"`
	Since    *time.Time         `json:"since,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	Offset   int                `json:"offset,omitempty"`
}

// ComplianceRepository persists per-clause assessments
type ComplianceRepository interface {
	Save(ctx context.Context, state *ComplianceState) error
	SaveBatch(ctx context.Context, states []*ComplianceState) error
	List(ctx context.Context, filter ComplianceFilter) ([]*ComplianceState, error)
	ListBySystem(ctx context.Context, systemID uuid.UUID) ([]*ComplianceState, error)
	Count(ctx context.Context, filter ComplianceFilter) (int64, error)
}

// OversightFilter narrows oversight action queries
type OversightFilter struct {
	SystemID    uuid.UUID             `json:"system_id,omitempty"`
	ActionTypes []OversightActionType `json:"action_types,omitempty"`
	ActorID     string                `json:"actor_id,omitempty"`
	Since       *time.Time            `json:"since,omitempty"`
	Limit       int                   `json:"limit,omitempty"`
	Offset      int                   `json:"offset,omitempty"`
}

// OversightRepository persists recorded human-oversight actions
type OversightRepository interface {
	Save(ctx context.Context, action *OversightAction) error
	List(ctx context.Context, filter OversightFilter) ([]*OversightAction, error)
	Count(ctx context.Context, filter OversightFilter) (int64, error)
}
