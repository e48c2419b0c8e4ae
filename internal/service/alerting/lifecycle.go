package alerting

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// Acknowledge moves an ACTIVE alert to ACKNOWLEDGED on behalf of actorID.
func (e *Engine) Acknowledge(ctx context.Context, alertID uuid.UUID, actorID, notes string) (*alert.Alert, error) {
	return e.transition(ctx, alertID, actorID, audit.EventAlertAcknowledged,
		func(a *alert.Alert) error { return a.Acknowledge(actorID, notes) })
}

// Resolve closes an alert. Allowed from ACTIVE or ACKNOWLEDGED.
func (e *Engine) Resolve(ctx context.Context, alertID uuid.UUID, actorID, notes string) (*alert.Alert, error) {
	return e.transition(ctx, alertID, actorID, audit.EventAlertResolved,
		func(a *alert.Alert) error { return a.Resolve(actorID, notes) })
}

// MarkFalsePositive closes an alert as a false positive. Allowed from ACTIVE
// or ACKNOWLEDGED.
func (e *Engine) MarkFalsePositive(ctx context.Context, alertID uuid.UUID, actorID, notes string) (*alert.Alert, error) {
	return e.transition(ctx, alertID, actorID, audit.EventAlertFalsePositive,
		func(a *alert.Alert) error { return a.MarkFalsePositive(actorID, notes) })
}

// transition loads the alert, applies the state change, persists it, and
// records a before/after audit entry attributed to the human actor.
func (e *Engine) transition(
	ctx context.Context,
	alertID uuid.UUID,
	actorID string,
	eventType audit.EventType,
	apply func(*alert.Alert) error,
) (*alert.Alert, error) {
	if actorID == "" {
		return nil, errors.NewValidationError("MISSING_ACTOR",
			"alert state changes require an actor")
	}

	a, err := e.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errors.NewNotFoundError("alert")
	}

	before := a.Snapshot()

	if err := apply(a); err != nil {
		return nil, err
	}

	if err := e.alertRepo.Save(ctx, a); err != nil {
		return nil, errors.NewDependencyError("alert repository",
			"could not persist alert state change").WithCause(err)
	}

	if e.recorder != nil {
		entry, err := audit.NewEntry(eventType, "alert", a.ID.String(), audit.ActionUpdate)
		if err == nil {
			entry.WithActor(actorID, audit.ActorHuman).WithSnapshots(before, a.Snapshot())
			_, err = e.recorder.AppendSync(ctx, entry)
		}
		if err != nil {
			e.logger.Error("alert transition audit write failed",
				zap.String("alert_id", a.ID.String()),
				zap.String("event_type", string(eventType)),
				zap.Error(err),
			)
		}
	}

	e.logger.Info("alert transitioned",
		zap.String("alert_id", a.ID.String()),
		zap.String("status", string(a.Status)),
		zap.String("actor_id", actorID),
	)

	return a, nil
}
