package eventbus

import (
	"context"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/domain/governance"
	"github.com/aimsgrid/governance-engine/internal/domain/incident"
)

// Convenience emitters encode the canonical entity-type/action/actor mapping
// for each governance event kind. They are documentation of the event
// vocabulary, not a separate mechanism.

// Entity type names used on the audit trail
const (
	EntitySystem          = "ai_system"
	EntityComplianceState = "compliance_state"
	EntityIncident        = "incident"
	EntityOversightAction = "oversight_action"
	EntityAlert           = "alert"
)

// EmitSystemRegistered records a new system registration
func (b *Bus) EmitSystemRegistered(ctx context.Context, system *governance.AISystem, actorID string) error {
	return b.Emit(ctx, Event{
		Type:       audit.EventSystemRegistered,
		EntityType: EntitySystem,
		EntityID:   system.ID.String(),
		Action:     audit.ActionCreate,
		ActorID:    actorID,
		ActorType:  actorTypeFor(actorID),
		After:      system.Snapshot(),
	})
}

// EmitSystemUpdated records a change to a registered system
func (b *Bus) EmitSystemUpdated(ctx context.Context, before, after *governance.AISystem, actorID string) error {
	return b.Emit(ctx, Event{
		Type:       audit.EventSystemUpdated,
		EntityType: EntitySystem,
		EntityID:   after.ID.String(),
		Action:     audit.ActionUpdate,
		ActorID:    actorID,
		ActorType:  actorTypeFor(actorID),
		Before:     before.Snapshot(),
		After:      after.Snapshot(),
	})
}

// EmitComplianceAssessed records one clause assessment
func (b *Bus) EmitComplianceAssessed(ctx context.Context, state *governance.ComplianceState, actorID string) error {
	return b.Emit(ctx, Event{
		Type:       audit.EventComplianceAssessed,
		EntityType: EntityComplianceState,
		EntityID:   state.ID.String(),
		Action:     audit.ActionAssess,
		ActorID:    actorID,
		ActorType:  actorTypeFor(actorID),
		After: map[string]interface{}{
			"system_id": state.SystemID.String(),
			"clause_id": state.ClauseID,
			"status":    string(state.Status),
		},
	})
}

// EmitIncidentCreated records incident creation with a synchronous audit write
func (b *Bus) EmitIncidentCreated(ctx context.Context, inc *incident.Incident, actorID string) error {
	return b.EmitCritical(ctx, Event{
		Type:       audit.EventIncidentCreated,
		EntityType: EntityIncident,
		EntityID:   inc.ID.String(),
		Action:     audit.ActionCreate,
		ActorID:    actorID,
		ActorType:  actorTypeFor(actorID),
		After:      inc.Snapshot(),
	})
}

// EmitWorkflowAdvanced records an incident step transition
func (b *Bus) EmitWorkflowAdvanced(ctx context.Context, inc *incident.Incident, from, to incident.Step, actorID string) error {
	return b.Emit(ctx, Event{
		Type:       audit.EventIncidentAdvanced,
		EntityType: EntityIncident,
		EntityID:   inc.ID.String(),
		Action:     audit.ActionAdvance,
		ActorID:    actorID,
		ActorType:  actorTypeFor(actorID),
		Metadata: map[string]interface{}{
			"from_step": string(from),
			"to_step":   string(to),
		},
	})
}

// EmitIncidentResolved records incident resolution
func (b *Bus) EmitIncidentResolved(ctx context.Context, inc *incident.Incident, actorID string) error {
	return b.Emit(ctx, Event{
		Type:       audit.EventIncidentResolved,
		EntityType: EntityIncident,
		EntityID:   inc.ID.String(),
		Action:     audit.ActionResolve,
		ActorID:    actorID,
		ActorType:  actorTypeFor(actorID),
		After:      inc.Snapshot(),
	})
}

// EmitIncidentReopened records reopening a resolved incident
func (b *Bus) EmitIncidentReopened(ctx context.Context, inc *incident.Incident, actorID, reason string) error {
	return b.Emit(ctx, Event{
		Type:       audit.EventIncidentReopened,
		EntityType: EntityIncident,
		EntityID:   inc.ID.String(),
		Action:     audit.ActionUpdate,
		ActorID:    actorID,
		ActorType:  actorTypeFor(actorID),
		Metadata: map[string]interface{}{
			"reason": reason,
		},
	})
}

// EmitOversightAction records a human-oversight act with a synchronous write
func (b *Bus) EmitOversightAction(ctx context.Context, action *governance.OversightAction) error {
	return b.EmitCritical(ctx, Event{
		Type:       audit.EventOversightActionRecorded,
		EntityType: EntityOversightAction,
		EntityID:   action.ID.String(),
		Action:     audit.ActionCreate,
		ActorID:    action.ActorID,
		ActorType:  audit.ActorHuman,
		After: map[string]interface{}{
			"system_id":   action.SystemID.String(),
			"action_type": string(action.ActionType),
			"reason":      action.Reason,
		},
	})
}

// EmitOverride records a human override with a synchronous write
func (b *Bus) EmitOverride(ctx context.Context, systemID uuid.UUID, actorID, reason string) error {
	return b.EmitCritical(ctx, Event{
		Type:       audit.EventOversightOverride,
		EntityType: EntitySystem,
		EntityID:   systemID.String(),
		Action:     audit.ActionOverride,
		ActorID:    actorID,
		ActorType:  audit.ActorHuman,
		Metadata: map[string]interface{}{
			"reason": reason,
		},
	})
}

// EmitAlert records a fired alert with a synchronous write
func (b *Bus) EmitAlert(ctx context.Context, a *alert.Alert) error {
	return b.EmitCritical(ctx, Event{
		Type:       audit.EventAlertTriggered,
		EntityType: EntityAlert,
		EntityID:   a.ID.String(),
		Action:     audit.ActionAlert,
		ActorType:  audit.ActorAutomated,
		After:      a.Snapshot(),
	})
}

// actorTypeFor defaults to SYSTEM when no human identity is supplied
func actorTypeFor(actorID string) audit.ActorType {
	if actorID == "" {
		return audit.ActorSystem
	}
	return audit.ActorHuman
}
