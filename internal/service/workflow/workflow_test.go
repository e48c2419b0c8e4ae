package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/incident"
	"github.com/aimsgrid/governance-engine/internal/testutil"
	"github.com/aimsgrid/governance-engine/internal/testutil/fixtures"
)

// recordingEmitter captures emitted lifecycle events for assertions
type recordingEmitter struct {
	mu       sync.Mutex
	created  []uuid.UUID
	advanced [][2]incident.Step
	resolved []uuid.UUID
	reopened []string
}

func (e *recordingEmitter) EmitIncidentCreated(ctx context.Context, inc *incident.Incident, actorID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, inc.ID)
	return nil
}

func (e *recordingEmitter) EmitWorkflowAdvanced(ctx context.Context, inc *incident.Incident, from, to incident.Step, actorID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanced = append(e.advanced, [2]incident.Step{from, to})
	return nil
}

func (e *recordingEmitter) EmitIncidentResolved(ctx context.Context, inc *incident.Incident, actorID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolved = append(e.resolved, inc.ID)
	return nil
}

func (e *recordingEmitter) EmitIncidentReopened(ctx context.Context, inc *incident.Incident, actorID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reopened = append(e.reopened, reason)
	return nil
}

type workflowHarness struct {
	incidents *testutil.MemoryIncidentRepository
	systems   *testutil.MemorySystemRepository
	emitter   *recordingEmitter
	workflow  *Workflow
}

func newWorkflowHarness(t *testing.T) *workflowHarness {
	t.Helper()

	h := &workflowHarness{
		incidents: testutil.NewMemoryIncidentRepository(),
		systems:   testutil.NewMemorySystemRepository(),
		emitter:   &recordingEmitter{},
	}

	var err error
	h.workflow, err = NewWorkflow(h.incidents, h.systems, h.emitter, zap.NewNop())
	require.NoError(t, err)
	return h
}

// registerSystem saves a system so incident creation passes the existence check
func (h *workflowHarness) registerSystem(t *testing.T) uuid.UUID {
	t.Helper()
	system := fixtures.NewSystemBuilder().Build(t)
	require.NoError(t, h.systems.Save(context.Background(), system))
	return system.ID
}

func (h *workflowHarness) createIncident(t *testing.T) *incident.Incident {
	t.Helper()
	inc, err := h.workflow.CreateIncident(context.Background(), CreateIncidentInput{
		Title:            "model producing biased output",
		Description:      "loan scoring drift detected on protected attributes",
		AffectedSystemID: h.registerSystem(t),
		Severity:         incident.SeverityCritical,
		DetectionMethod:  incident.DetectedByMonitoring,
		ActorID:          "monitor-1",
	})
	require.NoError(t, err)
	return inc
}

// seedAt persists an incident directly at the given step, bypassing workflow ops
func (h *workflowHarness) seedAt(t *testing.T, step incident.Step) *incident.Incident {
	t.Helper()
	inc := fixtures.NewIncidentBuilder().AtStep(step).Build(t)
	require.NoError(t, h.incidents.Save(context.Background(), inc))
	return inc
}

func TestWorkflow_CreateIncident(t *testing.T) {
	h := newWorkflowHarness(t)
	inc := h.createIncident(t)

	assert.Equal(t, incident.StepDetect, inc.CurrentStep)
	assert.Equal(t, incident.SeverityCritical, inc.Severity)
	assert.True(t, inc.TensorPosition.IsZero())
	assert.True(t, inc.IsOpen())
	assert.Equal(t, []uuid.UUID{inc.ID}, h.emitter.created)

	stored, err := h.workflow.GetIncident(context.Background(), inc.ID)
	require.NoError(t, err)
	assert.Equal(t, inc.Title, stored.Title)
}

func TestWorkflow_CreateIncident_UnknownSystem(t *testing.T) {
	h := newWorkflowHarness(t)

	_, err := h.workflow.CreateIncident(context.Background(), CreateIncidentInput{
		Title:            "model producing biased output",
		AffectedSystemID: uuid.New(),
		Severity:         incident.SeverityCritical,
	})
	assert.Error(t, err)
}

func TestWorkflow_Advance_WalksStepOrder(t *testing.T) {
	h := newWorkflowHarness(t)
	ctx := context.Background()
	inc := h.createIncident(t)

	for _, want := range incident.StepOrder[1:] {
		advanced, err := h.workflow.Advance(ctx, inc.ID, "", "responder-1")
		require.NoError(t, err)
		assert.Equal(t, want, advanced.CurrentStep)
	}

	// at VERIFY there is no next step
	_, err := h.workflow.Advance(ctx, inc.ID, "", "responder-1")
	assert.Error(t, err)

	require.Len(t, h.emitter.advanced, len(incident.StepOrder)-1)
	assert.Equal(t, [2]incident.Step{incident.StepDetect, incident.StepAssess}, h.emitter.advanced[0])
}

func TestWorkflow_SetStep(t *testing.T) {
	tests := []struct {
		name    string
		from    incident.Step
		to      incident.Step
		wantErr bool
	}{
		{"forward jump over several steps", incident.StepDetect, incident.StepInvestigate, false},
		{"single forward step", incident.StepAssess, incident.StepStabilize, false},
		{"backward move rejected", incident.StepInvestigate, incident.StepAssess, true},
		{"same step accepted", incident.StepReport, incident.StepReport, false},
		{"unknown step rejected", incident.StepDetect, incident.Step("TRIAGE"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newWorkflowHarness(t)
			inc := h.seedAt(t, tt.from)

			updated, err := h.workflow.SetStep(context.Background(), inc.ID, tt.to, "test jump", "responder-1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, updated.CurrentStep)
		})
	}
}

func TestWorkflow_SetStep_SameStepIsNoOp(t *testing.T) {
	h := newWorkflowHarness(t)
	ctx := context.Background()
	inc := h.seedAt(t, incident.StepReport)

	updated, err := h.workflow.SetStep(ctx, inc.ID, incident.StepReport, "re-confirming step", "responder-1")
	require.NoError(t, err)
	assert.Equal(t, incident.StepReport, updated.CurrentStep)
	assert.Empty(t, h.emitter.advanced, "no transition event for staying in place")

	stored, err := h.workflow.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, incident.StepReport, stored.CurrentStep)
}

func TestWorkflow_CompleteAssessment(t *testing.T) {
	h := newWorkflowHarness(t)
	ctx := context.Background()
	inc := h.seedAt(t, incident.StepAssess)

	updated, err := h.workflow.CompleteAssessment(ctx, inc.ID, incident.SeverityCatastrophic, PositionParams{
		AffectedUsers:      50_000,
		RegulatoryExposure: true,
	}, "assessor-1")
	require.NoError(t, err)

	assert.Equal(t, incident.StepStabilize, updated.CurrentStep)
	assert.Equal(t, incident.SeverityCatastrophic, updated.Severity)
	assert.False(t, updated.TensorPosition.IsZero())
}

func TestWorkflow_CompleteAssessment_WrongStep(t *testing.T) {
	h := newWorkflowHarness(t)
	inc := h.seedAt(t, incident.StepDetect)

	_, err := h.workflow.CompleteAssessment(context.Background(), inc.ID,
		incident.SeverityCritical, PositionParams{}, "assessor-1")
	assert.Error(t, err)
}

func TestWorkflow_CompletionGates(t *testing.T) {
	tests := []struct {
		name    string
		step    incident.Step
		call    func(h *workflowHarness, id uuid.UUID) (*incident.Incident, error)
		want    incident.Step
		wantErr bool
	}{
		{
			name: "report completion advances to INVESTIGATE",
			step: incident.StepReport,
			call: func(h *workflowHarness, id uuid.UUID) (*incident.Incident, error) {
				return h.workflow.CompleteReport(context.Background(), id, true, "reporter-1")
			},
			want: incident.StepInvestigate,
		},
		{
			name: "investigation completion advances to CORRECT",
			step: incident.StepInvestigate,
			call: func(h *workflowHarness, id uuid.UUID) (*incident.Incident, error) {
				return h.workflow.CompleteInvestigation(context.Background(), id, "training data leak", "investigator-1")
			},
			want: incident.StepCorrect,
		},
		{
			name: "investigation without root cause rejected",
			step: incident.StepInvestigate,
			call: func(h *workflowHarness, id uuid.UUID) (*incident.Incident, error) {
				return h.workflow.CompleteInvestigation(context.Background(), id, "", "investigator-1")
			},
			wantErr: true,
		},
		{
			name: "corrective action advances to VERIFY",
			step: incident.StepCorrect,
			call: func(h *workflowHarness, id uuid.UUID) (*incident.Incident, error) {
				return h.workflow.CompleteCorrectiveAction(context.Background(), id, "retrained on cleaned corpus", "engineer-1")
			},
			want: incident.StepVerify,
		},
		{
			name: "corrective action without description rejected",
			step: incident.StepCorrect,
			call: func(h *workflowHarness, id uuid.UUID) (*incident.Incident, error) {
				return h.workflow.CompleteCorrectiveAction(context.Background(), id, "", "engineer-1")
			},
			wantErr: true,
		},
		{
			name: "report completion rejected off-step",
			step: incident.StepDetect,
			call: func(h *workflowHarness, id uuid.UUID) (*incident.Incident, error) {
				return h.workflow.CompleteReport(context.Background(), id, true, "reporter-1")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newWorkflowHarness(t)
			inc := h.seedAt(t, tt.step)

			updated, err := tt.call(h, inc.ID)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, updated.CurrentStep)
		})
	}
}

func TestWorkflow_CompleteVerification_Success(t *testing.T) {
	h := newWorkflowHarness(t)
	ctx := context.Background()
	inc := h.seedAt(t, incident.StepVerify)

	updated, err := h.workflow.CompleteVerification(ctx, inc.ID, true, "tighten model release gates", "verifier-1")
	require.NoError(t, err)

	assert.True(t, updated.IsResolved())
	assert.Equal(t, "tighten model release gates", updated.LessonsLearned)
	assert.Equal(t, []uuid.UUID{inc.ID}, h.emitter.resolved)
}

func TestWorkflow_CompleteVerification_FailureReturnsToCorrect(t *testing.T) {
	h := newWorkflowHarness(t)
	ctx := context.Background()
	inc := h.seedAt(t, incident.StepVerify)

	updated, err := h.workflow.CompleteVerification(ctx, inc.ID, false, "", "verifier-1")
	require.NoError(t, err)

	assert.Equal(t, incident.StepCorrect, updated.CurrentStep)
	assert.False(t, updated.IsResolved())
	require.Len(t, h.emitter.advanced, 1)
	assert.Equal(t, [2]incident.Step{incident.StepVerify, incident.StepCorrect}, h.emitter.advanced[0])
}

func TestWorkflow_Reopen(t *testing.T) {
	h := newWorkflowHarness(t)
	ctx := context.Background()
	inc := h.seedAt(t, incident.StepVerify)

	_, err := h.workflow.CompleteVerification(ctx, inc.ID, true, "", "verifier-1")
	require.NoError(t, err)

	reopened, err := h.workflow.Reopen(ctx, inc.ID, "regression resurfaced in production", "ops-lead")
	require.NoError(t, err)

	assert.Equal(t, incident.StepInvestigate, reopened.CurrentStep)
	assert.Nil(t, reopened.ResolvedAt)
	assert.True(t, reopened.IsOpen())
	assert.Equal(t, []string{"regression resurfaced in production"}, h.emitter.reopened)
}

func TestWorkflow_Reopen_Rejections(t *testing.T) {
	h := newWorkflowHarness(t)
	ctx := context.Background()

	open := h.seedAt(t, incident.StepInvestigate)
	_, err := h.workflow.Reopen(ctx, open.ID, "still broken", "ops-lead")
	assert.Error(t, err, "open incidents cannot be reopened")

	resolved := h.seedAt(t, incident.StepVerify)
	_, err = h.workflow.CompleteVerification(ctx, resolved.ID, true, "", "verifier-1")
	require.NoError(t, err)

	_, err = h.workflow.Reopen(ctx, resolved.ID, "", "ops-lead")
	assert.Error(t, err, "reopening requires a reason")
}

func TestWorkflow_CompleteVerification_StampsClock(t *testing.T) {
	h := newWorkflowHarness(t)
	ctx := context.Background()

	resolvedAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	h.workflow.now = func() time.Time { return resolvedAt }

	inc := h.seedAt(t, incident.StepVerify)
	updated, err := h.workflow.CompleteVerification(ctx, inc.ID, true, "", "verifier-1")
	require.NoError(t, err)

	require.NotNil(t, updated.ResolvedAt)
	assert.Equal(t, resolvedAt, *updated.ResolvedAt)
}

func TestWorkflow_GetIncident_NotFound(t *testing.T) {
	h := newWorkflowHarness(t)

	_, err := h.workflow.GetIncident(context.Background(), uuid.New())
	assert.Error(t, err)
}
