package fixtures

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aimsgrid/governance-engine/internal/domain/governance"
)

// SystemBuilder builds test AISystem entities
type SystemBuilder struct {
	name           string
	description    string
	riskCategory   governance.RiskCategory
	oversightLevel governance.OversightLevel
	ownerID        string
}

// NewSystemBuilder creates a builder with a unique name and safe defaults
func NewSystemBuilder() *SystemBuilder {
	return &SystemBuilder{
		name:           fmt.Sprintf("test-system-%d", time.Now().UnixNano()),
		description:    "Test AI system",
		riskCategory:   governance.RiskLimited,
		oversightLevel: governance.OversightHumanOnLoop,
		ownerID:        "owner-1",
	}
}

func (b *SystemBuilder) WithName(name string) *SystemBuilder {
	b.name = name
	return b
}

func (b *SystemBuilder) WithRiskCategory(risk governance.RiskCategory) *SystemBuilder {
	b.riskCategory = risk
	return b
}

func (b *SystemBuilder) WithOversightLevel(level governance.OversightLevel) *SystemBuilder {
	b.oversightLevel = level
	return b
}

func (b *SystemBuilder) WithOwner(ownerID string) *SystemBuilder {
	b.ownerID = ownerID
	return b
}

// Build creates the system, failing the test on invalid configuration
func (b *SystemBuilder) Build(t *testing.T) *governance.AISystem {
	t.Helper()

	system, err := governance.NewAISystem(b.name, b.riskCategory, b.oversightLevel)
	require.NoError(t, err)
	system.Description = b.description
	system.OwnerID = b.ownerID
	return system
}
