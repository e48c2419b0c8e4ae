package alerting

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/testutil/fixtures"
)

func (h *engineHarness) fireAlert(t *testing.T) *alert.Alert {
	t.Helper()

	rule := h.saveRule(t, fixtures.NewRuleBuilder().Build(t))
	a, err := alert.NewAlert(rule, "warning: "+rule.Name, "open incidents crossed threshold", 6.0)
	require.NoError(t, err)
	require.NoError(t, h.alertRepo.Save(context.Background(), a))
	return a
}

func (h *engineHarness) auditEntriesOf(eventType audit.EventType) []*audit.Entry {
	var matched []*audit.Entry
	for _, entry := range h.auditRepo.All() {
		if entry.EventType == eventType {
			matched = append(matched, entry)
		}
	}
	return matched
}

func TestEngine_Acknowledge(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	a := h.fireAlert(t)

	updated, err := h.engine.Acknowledge(ctx, a.ID, "compliance-officer", "investigating")
	require.NoError(t, err)

	assert.Equal(t, alert.StatusAcknowledged, updated.Status)
	assert.Equal(t, "compliance-officer", updated.AcknowledgedBy)
	require.NotNil(t, updated.AcknowledgedAt)
	assert.Equal(t, "investigating", updated.Notes)

	entries := h.auditEntriesOf(audit.EventAlertAcknowledged)
	require.Len(t, entries, 1)
	assert.Equal(t, "compliance-officer", entries[0].ActorID)
	assert.Equal(t, audit.ActorHuman, entries[0].ActorType)
	assert.Equal(t, string(alert.StatusActive), entries[0].Before["status"])
	assert.Equal(t, string(alert.StatusAcknowledged), entries[0].After["status"])
}

func TestEngine_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		acknowledge bool
	}{
		{"from active", false},
		{"from acknowledged", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newEngineHarness(t)
			ctx := context.Background()
			a := h.fireAlert(t)

			if tt.acknowledge {
				_, err := h.engine.Acknowledge(ctx, a.ID, "compliance-officer", "")
				require.NoError(t, err)
			}

			updated, err := h.engine.Resolve(ctx, a.ID, "ops-lead", "capacity restored")
			require.NoError(t, err)

			assert.Equal(t, alert.StatusResolved, updated.Status)
			assert.Equal(t, "ops-lead", updated.ResolvedBy)
			require.NotNil(t, updated.ResolvedAt)

			entries := h.auditEntriesOf(audit.EventAlertResolved)
			require.Len(t, entries, 1)
			assert.Equal(t, string(alert.StatusResolved), entries[0].After["status"])
		})
	}
}

func TestEngine_MarkFalsePositive(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	a := h.fireAlert(t)

	updated, err := h.engine.MarkFalsePositive(ctx, a.ID, "ops-lead", "threshold tuned too low")
	require.NoError(t, err)

	assert.Equal(t, alert.StatusFalsePositive, updated.Status)
	assert.Equal(t, "ops-lead", updated.ResolvedBy)

	entries := h.auditEntriesOf(audit.EventAlertFalsePositive)
	require.Len(t, entries, 1)
}

func TestEngine_Transition_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, h *engineHarness, a *alert.Alert)
		call    func(h *engineHarness, id uuid.UUID) error
		alertID func(a *alert.Alert) uuid.UUID
	}{
		{
			name:    "missing actor",
			prepare: func(*testing.T, *engineHarness, *alert.Alert) {},
			call: func(h *engineHarness, id uuid.UUID) error {
				_, err := h.engine.Acknowledge(context.Background(), id, "", "")
				return err
			},
			alertID: func(a *alert.Alert) uuid.UUID { return a.ID },
		},
		{
			name:    "unknown alert",
			prepare: func(*testing.T, *engineHarness, *alert.Alert) {},
			call: func(h *engineHarness, id uuid.UUID) error {
				_, err := h.engine.Resolve(context.Background(), id, "ops-lead", "")
				return err
			},
			alertID: func(*alert.Alert) uuid.UUID { return uuid.New() },
		},
		{
			name: "acknowledge twice",
			prepare: func(t *testing.T, h *engineHarness, a *alert.Alert) {
				_, err := h.engine.Acknowledge(context.Background(), a.ID, "compliance-officer", "")
				require.NoError(t, err)
			},
			call: func(h *engineHarness, id uuid.UUID) error {
				_, err := h.engine.Acknowledge(context.Background(), id, "ops-lead", "")
				return err
			},
			alertID: func(a *alert.Alert) uuid.UUID { return a.ID },
		},
		{
			name: "resolve a resolved alert",
			prepare: func(t *testing.T, h *engineHarness, a *alert.Alert) {
				_, err := h.engine.Resolve(context.Background(), a.ID, "ops-lead", "")
				require.NoError(t, err)
			},
			call: func(h *engineHarness, id uuid.UUID) error {
				_, err := h.engine.Resolve(context.Background(), id, "ops-lead", "")
				return err
			},
			alertID: func(a *alert.Alert) uuid.UUID { return a.ID },
		},
		{
			name: "acknowledge a false positive",
			prepare: func(t *testing.T, h *engineHarness, a *alert.Alert) {
				_, err := h.engine.MarkFalsePositive(context.Background(), a.ID, "ops-lead", "")
				require.NoError(t, err)
			},
			call: func(h *engineHarness, id uuid.UUID) error {
				_, err := h.engine.Acknowledge(context.Background(), id, "compliance-officer", "")
				return err
			},
			alertID: func(a *alert.Alert) uuid.UUID { return a.ID },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newEngineHarness(t)
			a := h.fireAlert(t)
			tt.prepare(t, h, a)

			err := tt.call(h, tt.alertID(a))
			assert.Error(t, err)
		})
	}
}
