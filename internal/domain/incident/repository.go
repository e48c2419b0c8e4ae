package incident

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows incident queries. Zero values mean "no constraint".
type Filter struct {
	AffectedSystemID uuid.UUID  `json:"affected_system_id,omitempty"`
	Severities       []Severity `json:"severities,omitempty"`
	Steps            []Step     `json:"steps,omitempty"`
	Resolved         *bool      `json:"resolved,omitempty"`
	Since            *time.Time `json:"since,omitempty"`
	Until            *time.Time `json:"until,omitempty"`
	Limit            int        `json:"limit,omitempty"`
	Offset           int        `json:"offset,omitempty"`
}

// Repository persists incidents
type Repository interface {
	Save(ctx context.Context, inc *Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*Incident, error)
	List(ctx context.Context, filter Filter) ([]*Incident, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}
