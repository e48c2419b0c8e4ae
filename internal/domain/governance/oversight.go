package governance

import (
	"time"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// OversightActionType classifies a human-oversight act on a system
type OversightActionType string

const (
	OversightReview       OversightActionType = "REVIEW"
	OversightApproval     OversightActionType = "APPROVAL"
	OversightOverrideAct  OversightActionType = "OVERRIDE"
	OversightIntervention OversightActionType = "INTERVENTION"
	OversightEscalation   OversightActionType = "ESCALATION"
)

// IsValid reports whether the action type is known
func (t OversightActionType) IsValid() bool {
	switch t {
	case OversightReview, OversightApproval, OversightOverrideAct,
		OversightIntervention, OversightEscalation:
		return true
	default:
		return false
	}
}

// OversightAction is one recorded human-oversight act
type OversightAction struct {
	ID         uuid.UUID           `json:"id"`
	SystemID   uuid.UUID           `json:"system_id"`
	ActionType OversightActionType `json:"action_type"`
	ActorID    string              `json:"actor_id"`
	Reason     string              `json:"reason,omitempty"`
	Outcome    string              `json:"outcome,omitempty"`
	RecordedAt time.Time           `json:"recorded_at"`
}

// NewOversightAction creates a validated oversight record. Overrides and
// interventions always require an acting human.
func NewOversightAction(systemID uuid.UUID, actionType OversightActionType, actorID string) (*OversightAction, error) {
	if systemID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_SYSTEM_ID", "system ID is required")
	}

	if !actionType.IsValid() {
		return nil, errors.NewValidationError("INVALID_OVERSIGHT_ACTION",
			"oversight action type must be known")
	}

	if actorID == "" {
		return nil, errors.NewValidationError("MISSING_ACTOR_ID",
			"oversight actions require an acting human identity")
	}

	return &OversightAction{
		ID:         uuid.New(),
		SystemID:   systemID,
		ActionType: actionType,
		ActorID:    actorID,
		RecordedAt: time.Now().UTC(),
	}, nil
}

// IsIntervention reports whether this action interrupted automated behavior
func (a *OversightAction) IsIntervention() bool {
	return a.ActionType == OversightIntervention || a.ActionType == OversightOverrideAct
}
