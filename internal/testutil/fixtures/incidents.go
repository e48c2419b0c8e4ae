package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aimsgrid/governance-engine/internal/domain/incident"
	"github.com/aimsgrid/governance-engine/internal/domain/values"
)

// IncidentBuilder builds test Incident entities
type IncidentBuilder struct {
	title      string
	systemID   uuid.UUID
	severity   incident.Severity
	step       incident.Step
	occurredAt time.Time
	position   *values.TensorPosition
	resolvedAt *time.Time
}

// NewIncidentBuilder creates a builder with safe defaults
func NewIncidentBuilder() *IncidentBuilder {
	return &IncidentBuilder{
		title:      "Test incident",
		systemID:   uuid.New(),
		severity:   incident.SeverityMarginal,
		step:       incident.StepDetect,
		occurredAt: time.Now().UTC().Add(-time.Hour),
	}
}

func (b *IncidentBuilder) WithTitle(title string) *IncidentBuilder {
	b.title = title
	return b
}

func (b *IncidentBuilder) WithSystem(systemID uuid.UUID) *IncidentBuilder {
	b.systemID = systemID
	return b
}

func (b *IncidentBuilder) WithSeverity(severity incident.Severity) *IncidentBuilder {
	b.severity = severity
	return b
}

func (b *IncidentBuilder) AtStep(step incident.Step) *IncidentBuilder {
	b.step = step
	return b
}

func (b *IncidentBuilder) OccurredAt(t time.Time) *IncidentBuilder {
	b.occurredAt = t
	return b
}

// WithPosition sets an assessed tensor position
func (b *IncidentBuilder) WithPosition(components []float64) *IncidentBuilder {
	p := values.MustNewTensorPosition(components)
	b.position = &p
	return b
}

// Resolved marks the incident resolved at the given time
func (b *IncidentBuilder) Resolved(at time.Time) *IncidentBuilder {
	b.resolvedAt = &at
	b.step = incident.StepVerify
	return b
}

// Build creates the incident, failing the test on invalid configuration
func (b *IncidentBuilder) Build(t *testing.T) *incident.Incident {
	t.Helper()

	inc, err := incident.NewIncident(b.title, b.systemID, b.severity, b.occurredAt)
	require.NoError(t, err)

	inc.CurrentStep = b.step
	if b.position != nil {
		inc.TensorPosition = *b.position
	}
	if b.resolvedAt != nil {
		inc.ResolvedAt = b.resolvedAt
	}
	return inc
}

// UniformPosition returns a 13-element vector with every component set to v
func UniformPosition(v float64) []float64 {
	components := make([]float64, values.TensorDimensions)
	for i := range components {
		components[i] = v
	}
	return components
}
