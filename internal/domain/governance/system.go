package governance

import (
	"time"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// RiskCategory classifies an AI system under the AIMS risk taxonomy
type RiskCategory string

const (
	RiskMinimal      RiskCategory = "MINIMAL"
	RiskLimited      RiskCategory = "LIMITED"
	RiskHigh         RiskCategory = "HIGH"
	RiskUnacceptable RiskCategory = "UNACCEPTABLE"
)

// IsValid reports whether the risk category is known
func (r RiskCategory) IsValid() bool {
	switch r {
	case RiskMinimal, RiskLimited, RiskHigh, RiskUnacceptable:
		return true
	default:
		return false
	}
}

// Rank orders risk categories for comparison: unacceptable > high > limited > minimal
func (r RiskCategory) Rank() int {
	switch r {
	case RiskUnacceptable:
		return 4
	case RiskHigh:
		return 3
	case RiskLimited:
		return 2
	case RiskMinimal:
		return 1
	default:
		return 0
	}
}

// OversightLevel describes the degree of human control over a system
type OversightLevel string

const (
	OversightHumanInLoop     OversightLevel = "HUMAN_IN_LOOP"
	OversightHumanOnLoop     OversightLevel = "HUMAN_ON_LOOP"
	OversightHumanCommand    OversightLevel = "HUMAN_IN_COMMAND"
	OversightFullyAutonomous OversightLevel = "FULLY_AUTONOMOUS"
)

// IsValid reports whether the oversight level is known
func (o OversightLevel) IsValid() bool {
	switch o {
	case OversightHumanInLoop, OversightHumanOnLoop, OversightHumanCommand, OversightFullyAutonomous:
		return true
	default:
		return false
	}
}

// AISystem is one registered AI system tracked for AIMS compliance
type AISystem struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Purpose        string         `json:"purpose,omitempty"`
	RiskCategory   RiskCategory   `json:"risk_category"`
	OversightLevel OversightLevel `json:"oversight_level"`
	OwnerID        string         `json:"owner_id,omitempty"`
	RegisteredAt   time.Time      `json:"registered_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewAISystem creates a validated system registration
func NewAISystem(name string, risk RiskCategory, oversight OversightLevel) (*AISystem, error) {
	if name == "" {
		return nil, errors.NewValidationError("MISSING_SYSTEM_NAME", "system name is required")
	}

	if !risk.IsValid() {
		return nil, errors.NewValidationError("INVALID_RISK_CATEGORY",
			"risk category must be MINIMAL, LIMITED, HIGH or UNACCEPTABLE")
	}

	if !oversight.IsValid() {
		return nil, errors.NewValidationError("INVALID_OVERSIGHT_LEVEL",
			"oversight level must be a known level")
	}

	now := time.Now().UTC()
	return &AISystem{
		ID:             uuid.New(),
		Name:           name,
		RiskCategory:   risk,
		OversightLevel: oversight,
		RegisteredAt:   now,
		UpdatedAt:      now,
	}, nil
}

// Snapshot returns an opaque state snapshot for audit before/after fields
func (s *AISystem) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"id":              s.ID.String(),
		"name":            s.Name,
		"risk_category":   string(s.RiskCategory),
		"oversight_level": string(s.OversightLevel),
	}
}
