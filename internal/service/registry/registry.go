package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/domain/governance"
)

// EventEmitter publishes governance events for registry operations. nil skips
// publication.
type EventEmitter interface {
	EmitSystemRegistered(ctx context.Context, system *governance.AISystem, actorID string) error
	EmitSystemUpdated(ctx context.Context, before, after *governance.AISystem, actorID string) error
	EmitComplianceAssessed(ctx context.Context, state *governance.ComplianceState, actorID string) error
	EmitOversightAction(ctx context.Context, action *governance.OversightAction) error
	EmitOverride(ctx context.Context, systemID uuid.UUID, actorID, reason string) error
}

// BaselineClauses are the governance clauses every newly registered system is
// initialized against, each starting NOT_ASSESSED.
var BaselineClauses = []string{
	"risk-management",
	"data-governance",
	"technical-documentation",
	"record-keeping",
	"transparency",
	"human-oversight",
	"accuracy-robustness",
}

// Registry manages AI system registrations, compliance assessments, and
// human-oversight records.
type Registry struct {
	systems    governance.SystemRepository
	compliance governance.ComplianceRepository
	oversight  governance.OversightRepository
	emitter    EventEmitter
	logger     *zap.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewRegistry builds the registry service. emitter may be nil.
func NewRegistry(
	systems governance.SystemRepository,
	compliance governance.ComplianceRepository,
	oversight governance.OversightRepository,
	emitter EventEmitter,
	logger *zap.Logger,
) (*Registry, error) {
	if systems == nil || compliance == nil || oversight == nil {
		return nil, errors.NewValidationError("MISSING_REPOSITORY",
			"system, compliance and oversight repositories are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		systems:    systems,
		compliance: compliance,
		oversight:  oversight,
		emitter:    emitter,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// RegisterSystemInput carries everything needed to register an AI system
type RegisterSystemInput struct {
	Name           string
	Description    string
	Purpose        string
	RiskCategory   governance.RiskCategory
	OversightLevel governance.OversightLevel
	OwnerID        string
	ActorID        string
}

// RegisterSystem registers a new AI system under a unique name and seeds its
// compliance baseline. A duplicate name is a conflict. Baseline seeding is
// best-effort: a partial failure leaves the registration in place and is
// reported through the log, not the return value.
func (r *Registry) RegisterSystem(ctx context.Context, input RegisterSystemInput) (*governance.AISystem, error) {
	existing, err := r.systems.GetByName(ctx, input.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.NewConflictError(
			fmt.Sprintf("system name %q is already registered", input.Name))
	}

	system, err := governance.NewAISystem(input.Name, input.RiskCategory, input.OversightLevel)
	if err != nil {
		return nil, err
	}
	system.Description = input.Description
	system.Purpose = input.Purpose
	system.OwnerID = input.OwnerID

	if err := r.systems.Save(ctx, system); err != nil {
		return nil, err
	}

	if err := r.seedBaseline(ctx, system.ID); err != nil {
		r.logger.Warn("compliance baseline seeding incomplete",
			zap.String("system_id", system.ID.String()),
			zap.Error(err),
		)
	}

	if r.emitter != nil {
		if err := r.emitter.EmitSystemRegistered(ctx, system, input.ActorID); err != nil {
			r.logger.Error("system registration event failed",
				zap.String("system_id", system.ID.String()),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("AI system registered",
		zap.String("system_id", system.ID.String()),
		zap.String("name", system.Name),
		zap.String("risk_category", string(system.RiskCategory)),
	)

	return system, nil
}

// seedBaseline creates a NOT_ASSESSED state for every baseline clause
func (r *Registry) seedBaseline(ctx context.Context, systemID uuid.UUID) error {
	states := make([]*governance.ComplianceState, 0, len(BaselineClauses))
	for _, clauseID := range BaselineClauses {
		state, err := governance.NewComplianceState(systemID, clauseID, governance.StatusNotAssessed)
		if err != nil {
			return err
		}
		states = append(states, state)
	}
	return r.compliance.SaveBatch(ctx, states)
}

// UpdateSystemInput carries the mutable registration fields. nil pointers
// leave the current value untouched.
type UpdateSystemInput struct {
	Description    *string
	Purpose        *string
	RiskCategory   *governance.RiskCategory
	OversightLevel *governance.OversightLevel
	OwnerID        *string
	ActorID        string
}

// UpdateSystem applies a partial update to a registered system
func (r *Registry) UpdateSystem(ctx context.Context, id uuid.UUID, input UpdateSystemInput) (*governance.AISystem, error) {
	system, err := r.getSystem(ctx, id)
	if err != nil {
		return nil, err
	}

	before := *system

	if input.Description != nil {
		system.Description = *input.Description
	}
	if input.Purpose != nil {
		system.Purpose = *input.Purpose
	}
	if input.RiskCategory != nil {
		if !input.RiskCategory.IsValid() {
			return nil, errors.NewValidationError("INVALID_RISK_CATEGORY",
				"risk category must be MINIMAL, LIMITED, HIGH or UNACCEPTABLE")
		}
		system.RiskCategory = *input.RiskCategory
	}
	if input.OversightLevel != nil {
		if !input.OversightLevel.IsValid() {
			return nil, errors.NewValidationError("INVALID_OVERSIGHT_LEVEL",
				"oversight level must be a known level")
		}
		system.OversightLevel = *input.OversightLevel
	}
	if input.OwnerID != nil {
		system.OwnerID = *input.OwnerID
	}
	system.UpdatedAt = r.now()

	if err := r.systems.Save(ctx, system); err != nil {
		return nil, err
	}

	if r.emitter != nil {
		if err := r.emitter.EmitSystemUpdated(ctx, &before, system, input.ActorID); err != nil {
			r.logger.Error("system update event failed",
				zap.String("system_id", system.ID.String()),
				zap.Error(err),
			)
		}
	}

	return system, nil
}

// GetSystem loads one registered system by ID
func (r *Registry) GetSystem(ctx context.Context, id uuid.UUID) (*governance.AISystem, error) {
	return r.getSystem(ctx, id)
}

func (r *Registry) getSystem(ctx context.Context, id uuid.UUID) (*governance.AISystem, error) {
	system, err := r.systems.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if system == nil {
		return nil, errors.NewNotFoundError("AI system")
	}
	return system, nil
}

// ListSystems applies the filter
func (r *Registry) ListSystems(ctx context.Context, filter governance.SystemFilter) ([]*governance.AISystem, error) {
	return r.systems.List(ctx, filter)
}

// AssessCompliance records one clause assessment for a registered system
func (r *Registry) AssessCompliance(ctx context.Context, systemID uuid.UUID, clauseID string, status governance.ComplianceStatus, assessorID, notes string) (*governance.ComplianceState, error) {
	if _, err := r.getSystem(ctx, systemID); err != nil {
		return nil, err
	}

	state, err := governance.NewComplianceState(systemID, clauseID, status)
	if err != nil {
		return nil, err
	}
	state.AssessorID = assessorID
	state.Notes = notes

	if err := r.compliance.Save(ctx, state); err != nil {
		return nil, errors.NewDependencyError("compliance repository",
			"could not persist assessment").WithCause(err)
	}

	if r.emitter != nil {
		if err := r.emitter.EmitComplianceAssessed(ctx, state, assessorID); err != nil {
			r.logger.Error("compliance assessment event failed",
				zap.String("system_id", systemID.String()),
				zap.String("clause_id", clauseID),
				zap.Error(err),
			)
		}
	}

	return state, nil
}

// GetComplianceStates lists every assessment recorded for a system
func (r *Registry) GetComplianceStates(ctx context.Context, systemID uuid.UUID) ([]*governance.ComplianceState, error) {
	if _, err := r.getSystem(ctx, systemID); err != nil {
		return nil, err
	}
	return r.compliance.ListBySystem(ctx, systemID)
}

// RecordOversightAction records a human-oversight act against a system. The
// audit write is synchronous; when it fails the caller gets the error even
// though the action row is already persisted, so the gap surfaces instead of
// passing silently.
func (r *Registry) RecordOversightAction(ctx context.Context, systemID uuid.UUID, actionType governance.OversightActionType, actorID, reason, outcome string) (*governance.OversightAction, error) {
	if _, err := r.getSystem(ctx, systemID); err != nil {
		return nil, err
	}

	action, err := governance.NewOversightAction(systemID, actionType, actorID)
	if err != nil {
		return nil, err
	}
	action.Reason = reason
	action.Outcome = outcome

	if err := r.oversight.Save(ctx, action); err != nil {
		return nil, errors.NewDependencyError("oversight repository",
			"could not persist oversight action").WithCause(err)
	}

	if r.emitter != nil {
		if err := r.emitter.EmitOversightAction(ctx, action); err != nil {
			return nil, err
		}
		if action.ActionType == governance.OversightOverrideAct {
			if err := r.emitter.EmitOverride(ctx, systemID, actorID, reason); err != nil {
				return nil, err
			}
		}
	}

	r.logger.Info("oversight action recorded",
		zap.String("system_id", systemID.String()),
		zap.String("action_type", string(actionType)),
		zap.String("actor_id", actorID),
	)

	return action, nil
}
