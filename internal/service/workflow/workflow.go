package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/domain/governance"
	"github.com/aimsgrid/governance-engine/internal/domain/incident"
)

// EventEmitter publishes incident lifecycle events. The workflow works without
// one; a nil emitter just skips publication.
type EventEmitter interface {
	EmitIncidentCreated(ctx context.Context, inc *incident.Incident, actorID string) error
	EmitWorkflowAdvanced(ctx context.Context, inc *incident.Incident, from, to incident.Step, actorID string) error
	EmitIncidentResolved(ctx context.Context, inc *incident.Incident, actorID string) error
	EmitIncidentReopened(ctx context.Context, inc *incident.Incident, actorID, reason string) error
}

// Workflow drives incidents through the seven-step response process and owns
// position calculation and similarity search.
type Workflow struct {
	incidents incident.Repository
	systems   governance.SystemRepository
	emitter   EventEmitter
	logger    *zap.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewWorkflow builds the incident workflow service. emitter may be nil.
func NewWorkflow(
	incidents incident.Repository,
	systems governance.SystemRepository,
	emitter EventEmitter,
	logger *zap.Logger,
) (*Workflow, error) {
	if incidents == nil {
		return nil, errors.NewValidationError("MISSING_REPOSITORY",
			"incident repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Workflow{
		incidents: incidents,
		systems:   systems,
		emitter:   emitter,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateIncidentInput carries everything needed to open an incident
type CreateIncidentInput struct {
	Title            string
	Description      string
	AffectedSystemID uuid.UUID
	Severity         incident.Severity
	DetectionMethod  incident.DetectionMethod
	OccurredAt       time.Time
	ActorID          string
}

// CreateIncident opens a new incident at the DETECT step. The affected system
// must be registered.
func (w *Workflow) CreateIncident(ctx context.Context, input CreateIncidentInput) (*incident.Incident, error) {
	if w.systems != nil {
		system, err := w.systems.GetByID(ctx, input.AffectedSystemID)
		if err != nil {
			return nil, err
		}
		if system == nil {
			return nil, errors.NewNotFoundError("AI system")
		}
	}

	inc, err := incident.NewIncident(input.Title, input.AffectedSystemID, input.Severity, input.OccurredAt)
	if err != nil {
		return nil, err
	}
	inc.Description = input.Description
	inc.DetectionMethod = input.DetectionMethod

	if err := w.incidents.Save(ctx, inc); err != nil {
		return nil, errors.NewDependencyError("incident repository",
			"could not persist incident").WithCause(err)
	}

	if w.emitter != nil {
		if err := w.emitter.EmitIncidentCreated(ctx, inc, input.ActorID); err != nil {
			w.logger.Error("incident creation event failed",
				zap.String("incident_id", inc.ID.String()),
				zap.Error(err),
			)
		}
	}

	w.logger.Info("incident created",
		zap.String("incident_id", inc.ID.String()),
		zap.String("severity", string(inc.Severity)),
		zap.String("system_id", inc.AffectedSystemID.String()),
	)

	return inc, nil
}

// GetIncident loads one incident by ID
func (w *Workflow) GetIncident(ctx context.Context, id uuid.UUID) (*incident.Incident, error) {
	inc, err := w.incidents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, errors.NewNotFoundError("incident")
	}
	return inc, nil
}

// Advance moves the incident to the next step in order. Fails once the
// incident is at VERIFY.
func (w *Workflow) Advance(ctx context.Context, id uuid.UUID, notes, actorID string) (*incident.Incident, error) {
	inc, err := w.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := inc.CurrentStep.Next()
	if err != nil {
		return nil, err
	}

	return w.moveTo(ctx, inc, next, notes, actorID)
}

// SetStep jumps the incident forward to any later-or-equal step. Setting the
// current step is a no-op that returns the incident unchanged. Backward moves
// are rejected; use the completion or reopen operations instead.
func (w *Workflow) SetStep(ctx context.Context, id uuid.UUID, step incident.Step, reason, actorID string) (*incident.Incident, error) {
	if !step.IsValid() {
		return nil, errors.NewValidationError("INVALID_STEP",
			fmt.Sprintf("unknown workflow step %q", string(step)))
	}

	inc, err := w.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	if step.Ordinal() < inc.CurrentStep.Ordinal() {
		return nil, errors.NewPreconditionError("BACKWARD_STEP_REJECTED",
			fmt.Sprintf("cannot move from %s to %s: only forward jumps are allowed",
				string(inc.CurrentStep), string(step)))
	}
	if step == inc.CurrentStep {
		return inc, nil
	}

	return w.moveTo(ctx, inc, step, reason, actorID)
}

// moveTo performs a validated transition, persists it, and publishes the step
// change.
func (w *Workflow) moveTo(ctx context.Context, inc *incident.Incident, to incident.Step, reason, actorID string) (*incident.Incident, error) {
	from := inc.CurrentStep
	if !incident.CanTransition(from, to) {
		return nil, errors.NewPreconditionError("ILLEGAL_TRANSITION",
			fmt.Sprintf("transition %s -> %s is not allowed", string(from), string(to)))
	}

	inc.CurrentStep = to
	inc.UpdatedAt = w.now()

	if err := w.incidents.Save(ctx, inc); err != nil {
		return nil, errors.NewDependencyError("incident repository",
			"could not persist step transition").WithCause(err)
	}

	if w.emitter != nil {
		if err := w.emitter.EmitWorkflowAdvanced(ctx, inc, from, to, actorID); err != nil {
			w.logger.Error("workflow transition event failed",
				zap.String("incident_id", inc.ID.String()),
				zap.Error(err),
			)
		}
	}

	w.logger.Info("incident step transitioned",
		zap.String("incident_id", inc.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
	)

	return inc, nil
}

// requireStep loads the incident and rejects the operation unless it is
// currently at the expected step.
func (w *Workflow) requireStep(ctx context.Context, id uuid.UUID, expected incident.Step) (*incident.Incident, error) {
	inc, err := w.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	if inc.CurrentStep != expected {
		return nil, errors.NewPreconditionError("STEP_MISMATCH",
			fmt.Sprintf("operation requires step %s but incident is at %s",
				string(expected), string(inc.CurrentStep)))
	}

	return inc, nil
}

// CompleteAssessment records the assessed severity and position, then advances
// to STABILIZE. The position is computed from the supplied parameters so the
// similarity search has a comparable vector.
func (w *Workflow) CompleteAssessment(ctx context.Context, id uuid.UUID, severity incident.Severity, params PositionParams, actorID string) (*incident.Incident, error) {
	inc, err := w.requireStep(ctx, id, incident.StepAssess)
	if err != nil {
		return nil, err
	}

	if !severity.IsValid() {
		return nil, errors.NewValidationError("INVALID_SEVERITY",
			"severity must be NEGLIGIBLE, MARGINAL, CRITICAL or CATASTROPHIC")
	}

	params.Severity = severity
	params.DetectionLag = inc.DetectionLag()

	position, err := CalculatePosition(params)
	if err != nil {
		return nil, err
	}

	inc.Severity = severity
	inc.TensorPosition = position

	return w.moveTo(ctx, inc, incident.StepStabilize, "assessment complete", actorID)
}

// CompleteReport records that required notifications went out, then advances
// to INVESTIGATE.
func (w *Workflow) CompleteReport(ctx context.Context, id uuid.UUID, notificationSent bool, actorID string) (*incident.Incident, error) {
	inc, err := w.requireStep(ctx, id, incident.StepReport)
	if err != nil {
		return nil, err
	}

	inc.NotificationSent = notificationSent

	return w.moveTo(ctx, inc, incident.StepInvestigate, "report complete", actorID)
}

// CompleteInvestigation records the root cause, then advances to CORRECT.
func (w *Workflow) CompleteInvestigation(ctx context.Context, id uuid.UUID, rootCause, actorID string) (*incident.Incident, error) {
	if rootCause == "" {
		return nil, errors.NewValidationError("MISSING_ROOT_CAUSE",
			"investigation completion requires a root cause")
	}

	inc, err := w.requireStep(ctx, id, incident.StepInvestigate)
	if err != nil {
		return nil, err
	}

	inc.RootCause = rootCause

	return w.moveTo(ctx, inc, incident.StepCorrect, "investigation complete", actorID)
}

// CompleteCorrectiveAction records the corrective action taken, then advances
// to VERIFY.
func (w *Workflow) CompleteCorrectiveAction(ctx context.Context, id uuid.UUID, correctiveAction, actorID string) (*incident.Incident, error) {
	if correctiveAction == "" {
		return nil, errors.NewValidationError("MISSING_CORRECTIVE_ACTION",
			"corrective action completion requires a description")
	}

	inc, err := w.requireStep(ctx, id, incident.StepCorrect)
	if err != nil {
		return nil, err
	}

	inc.CorrectiveAction = correctiveAction

	return w.moveTo(ctx, inc, incident.StepVerify, "corrective action complete", actorID)
}

// CompleteVerification closes the incident when verification succeeded, or
// moves it back to CORRECT when it failed. This is the only legitimate
// backward transition besides reopening.
func (w *Workflow) CompleteVerification(ctx context.Context, id uuid.UUID, verified bool, lessonsLearned, actorID string) (*incident.Incident, error) {
	inc, err := w.requireStep(ctx, id, incident.StepVerify)
	if err != nil {
		return nil, err
	}

	if !verified {
		return w.moveTo(ctx, inc, incident.StepCorrect, incident.BackwardVerificationFailed, actorID)
	}

	now := w.now()
	inc.LessonsLearned = lessonsLearned
	inc.ResolvedAt = &now
	inc.UpdatedAt = now

	if err := w.incidents.Save(ctx, inc); err != nil {
		return nil, errors.NewDependencyError("incident repository",
			"could not persist resolution").WithCause(err)
	}

	if w.emitter != nil {
		if err := w.emitter.EmitIncidentResolved(ctx, inc, actorID); err != nil {
			w.logger.Error("incident resolution event failed",
				zap.String("incident_id", inc.ID.String()),
				zap.Error(err),
			)
		}
	}

	w.logger.Info("incident resolved",
		zap.String("incident_id", inc.ID.String()),
		zap.Duration("resolution_time", inc.ResolutionTime()),
	)

	return inc, nil
}

// Reopen moves a resolved incident back to INVESTIGATE and clears the
// resolution timestamp. Open incidents cannot be reopened.
func (w *Workflow) Reopen(ctx context.Context, id uuid.UUID, reason, actorID string) (*incident.Incident, error) {
	if reason == "" {
		return nil, errors.NewValidationError("MISSING_REASON",
			"reopening requires a reason")
	}

	inc, err := w.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	if !inc.IsResolved() {
		return nil, errors.NewPreconditionError("INCIDENT_NOT_RESOLVED",
			"only a resolved incident can be reopened")
	}

	from := inc.CurrentStep
	inc.CurrentStep = incident.StepInvestigate
	inc.ResolvedAt = nil
	inc.UpdatedAt = w.now()

	if err := w.incidents.Save(ctx, inc); err != nil {
		return nil, errors.NewDependencyError("incident repository",
			"could not persist reopening").WithCause(err)
	}

	if w.emitter != nil {
		if err := w.emitter.EmitIncidentReopened(ctx, inc, actorID, reason); err != nil {
			w.logger.Error("incident reopen event failed",
				zap.String("incident_id", inc.ID.String()),
				zap.Error(err),
			)
		}
	}

	w.logger.Info("incident reopened",
		zap.String("incident_id", inc.ID.String()),
		zap.String("from", string(from)),
		zap.String("reason", reason),
	)

	return inc, nil
}

// ListIncidents applies the filter, newest-first
func (w *Workflow) ListIncidents(ctx context.Context, filter incident.Filter) ([]*incident.Incident, error) {
	return w.incidents.List(ctx, filter)
}
