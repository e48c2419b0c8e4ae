package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	auditsvc "github.com/aimsgrid/governance-engine/internal/service/audit"
	"github.com/aimsgrid/governance-engine/internal/service/eventbus"
	"github.com/aimsgrid/governance-engine/internal/service/metrics"
	"github.com/aimsgrid/governance-engine/internal/testutil"
	"github.com/aimsgrid/governance-engine/internal/testutil/fixtures"
)

// stubSnapshots serves a fixed snapshot without touching an aggregator
type stubSnapshots struct {
	snap *metrics.Snapshot
	err  error
}

func (s *stubSnapshots) GetSnapshot(ctx context.Context, forceRefresh bool) (*metrics.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

type engineHarness struct {
	ruleRepo  *testutil.MemoryRuleRepository
	alertRepo *testutil.MemoryAlertRepository
	auditRepo *testutil.MemoryAuditRepository
	log       *auditsvc.Log
	snapshots *stubSnapshots
	engine    *Engine
}

func newEngineHarness(t *testing.T) *engineHarness {
	t.Helper()

	auditRepo := testutil.NewMemoryAuditRepository()
	log, err := auditsvc.NewLog(context.Background(), auditsvc.Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
		WriteTimeout:  5 * time.Second,
	}, auditRepo, nil, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, log.Close(context.Background()))
	})

	bus, err := eventbus.New(log, nil, zap.NewNop())
	require.NoError(t, err)

	h := &engineHarness{
		ruleRepo:  testutil.NewMemoryRuleRepository(),
		alertRepo: testutil.NewMemoryAlertRepository(),
		auditRepo: auditRepo,
		log:       log,
		snapshots: &stubSnapshots{snap: &metrics.Snapshot{CapturedAt: time.Now().UTC()}},
	}

	h.engine, err = NewEngine(h.ruleRepo, h.alertRepo, h.snapshots, log, log, bus, nil, zap.NewNop(), nil)
	require.NoError(t, err)
	return h
}

func (h *engineHarness) saveRule(t *testing.T, rule *alert.Rule) *alert.Rule {
	t.Helper()
	require.NoError(t, h.ruleRepo.Save(context.Background(), rule))
	return rule
}

func TestEngine_EvaluateAll_ThresholdRule(t *testing.T) {
	tests := []struct {
		name      string
		condition alert.Condition
		snapshot  metrics.Snapshot
		wantFired bool
	}{
		{
			name:      "open incidents above threshold fires",
			condition: alert.Condition{Metric: metrics.MetricIncidentsOpen, Operator: alert.OpGreaterThan, Threshold: 5},
			snapshot:  metrics.Snapshot{Incidents: metrics.IncidentStats{Open: 6}},
			wantFired: true,
		},
		{
			name:      "open incidents at threshold does not fire on GT",
			condition: alert.Condition{Metric: metrics.MetricIncidentsOpen, Operator: alert.OpGreaterThan, Threshold: 5},
			snapshot:  metrics.Snapshot{Incidents: metrics.IncidentStats{Open: 5}},
			wantFired: false,
		},
		{
			name:      "at threshold fires on GTE",
			condition: alert.Condition{Metric: metrics.MetricIncidentsOpen, Operator: alert.OpGreaterOrEqual, Threshold: 5},
			snapshot:  metrics.Snapshot{Incidents: metrics.IncidentStats{Open: 5}},
			wantFired: true,
		},
		{
			name:      "compliance below floor fires on LT",
			condition: alert.Condition{Metric: metrics.MetricComplianceOverall, Operator: alert.OpLessThan, Threshold: 80},
			snapshot:  metrics.Snapshot{Compliance: metrics.ComplianceStats{OverallPercent: 72.5}},
			wantFired: true,
		},
		{
			name:      "override rate equal fires on EQ",
			condition: alert.Condition{Metric: metrics.MetricOverrideRate, Operator: alert.OpEqual, Threshold: 0.25},
			snapshot:  metrics.Snapshot{Oversight: metrics.OversightStats{OverrideRate: 0.25}},
			wantFired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newEngineHarness(t)
			h.snapshots.snap = &tt.snapshot
			h.saveRule(t, fixtures.NewRuleBuilder().WithCondition(tt.condition).Build(t))

			fired, err := h.engine.EvaluateAll(context.Background())
			require.NoError(t, err)

			if !tt.wantFired {
				assert.Empty(t, fired)
				return
			}

			require.Len(t, fired, 1)
			assert.Equal(t, alert.StatusActive, fired[0].Status)
			assert.Equal(t, alert.SeverityWarning, fired[0].Severity)

			stored, err := h.alertRepo.GetByID(context.Background(), fired[0].ID)
			require.NoError(t, err)
			require.NotNil(t, stored)
		})
	}
}

func TestEngine_EvaluateAll_MarksRuleTriggered(t *testing.T) {
	h := newEngineHarness(t)
	h.snapshots.snap = &metrics.Snapshot{Incidents: metrics.IncidentStats{Open: 10}}
	rule := h.saveRule(t, fixtures.NewRuleBuilder().Build(t))

	fired, err := h.engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, fired, 1)

	updated, err := h.ruleRepo.GetByID(context.Background(), rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.TriggerCount)
	require.NotNil(t, updated.LastTriggeredAt)
}

func TestEngine_EvaluateAll_RecordsFiredAlertOnTrail(t *testing.T) {
	h := newEngineHarness(t)
	h.snapshots.snap = &metrics.Snapshot{Incidents: metrics.IncidentStats{Open: 10}}
	rule := h.saveRule(t, fixtures.NewRuleBuilder().Build(t))

	fired, err := h.engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, fired, 1)

	entries := h.auditEntriesOf(audit.EventAlertTriggered)
	require.Len(t, entries, 1)
	assert.Equal(t, fired[0].ID.String(), entries[0].EntityID)
	assert.Equal(t, audit.ActionAlert, entries[0].Action)
	assert.Equal(t, audit.ActorAutomated, entries[0].ActorType)
	assert.Equal(t, rule.ID.String(), entries[0].After["rule_id"])
	assert.Equal(t, string(alert.StatusActive), entries[0].After["status"])
}

func TestEngine_EvaluateAll_Cooldown(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		lastTriggered time.Time
		wantFired     bool
	}{
		{"half way through cooldown", now.Add(-30 * time.Minute), false},
		{"just inside cooldown", now.Add(-59 * time.Minute), false},
		{"cooldown expired", now.Add(-61 * time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newEngineHarness(t)
			h.engine.now = func() time.Time { return now }
			h.snapshots.snap = &metrics.Snapshot{Incidents: metrics.IncidentStats{Open: 10}}
			h.saveRule(t, fixtures.NewRuleBuilder().
				WithCooldown(60).
				TriggeredAt(tt.lastTriggered).
				Build(t))

			fired, err := h.engine.EvaluateAll(context.Background())
			require.NoError(t, err)

			if tt.wantFired {
				assert.Len(t, fired, 1)
			} else {
				assert.Empty(t, fired)
			}
		})
	}
}

func TestEngine_EvaluateAll_SkipsInactiveRules(t *testing.T) {
	h := newEngineHarness(t)
	h.snapshots.snap = &metrics.Snapshot{Incidents: metrics.IncidentStats{Open: 10}}
	h.saveRule(t, fixtures.NewRuleBuilder().Inactive().Build(t))

	fired, err := h.engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestEngine_EvaluateAll_IsolatesFailingRules(t *testing.T) {
	h := newEngineHarness(t)
	h.snapshots.snap = &metrics.Snapshot{Incidents: metrics.IncidentStats{Open: 10}}

	// Saved directly, bypassing CreateRule validation, so evaluation hits the
	// unknown metric at runtime.
	broken := fixtures.NewRuleBuilder().
		WithName("broken-rule").
		WithCondition(alert.Condition{Metric: "noSuchMetric", Operator: alert.OpGreaterThan, Threshold: 1}).
		Build(t)
	h.saveRule(t, broken)
	healthy := h.saveRule(t, fixtures.NewRuleBuilder().WithName("healthy-rule").Build(t))

	fired, err := h.engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, healthy.ID, fired[0].RuleID)
}

func TestEngine_EvaluateAll_EventPatternRule(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry, err := audit.NewEntry(audit.EventOversightOverride, "oversight_action", "act-1", audit.ActionOverride)
		require.NoError(t, err)
		_, err = h.log.AppendSync(ctx, entry)
		require.NoError(t, err)
	}

	h.saveRule(t, fixtures.NewRuleBuilder().
		WithName("override-burst").
		AsEventPattern(string(audit.EventOversightOverride), alert.OpGreaterOrEqual, 3, 24).
		Build(t))

	fired, err := h.engine.EvaluateAll(ctx)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, float64(3), fired[0].TriggerValue)
}

func TestEngine_EvaluateAll_EventPatternBelowThreshold(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	entry, err := audit.NewEntry(audit.EventOversightOverride, "oversight_action", "act-1", audit.ActionOverride)
	require.NoError(t, err)
	_, err = h.log.AppendSync(ctx, entry)
	require.NoError(t, err)

	h.saveRule(t, fixtures.NewRuleBuilder().
		WithName("override-burst").
		AsEventPattern(string(audit.EventOversightOverride), alert.OpGreaterOrEqual, 3, 24).
		Build(t))

	fired, err := h.engine.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestEngine_EvaluateAll_CompositeRule(t *testing.T) {
	openHigh := alert.Condition{Metric: metrics.MetricIncidentsOpen, Operator: alert.OpGreaterThan, Threshold: 5}
	complianceLow := alert.Condition{Metric: metrics.MetricComplianceOverall, Operator: alert.OpLessThan, Threshold: 80}

	tests := []struct {
		name        string
		aggregation alert.Aggregation
		snapshot    metrics.Snapshot
		wantFired   bool
	}{
		{
			name:        "AND fires when both sub-conditions pass",
			aggregation: alert.AggregateAnd,
			snapshot: metrics.Snapshot{
				Incidents:  metrics.IncidentStats{Open: 6},
				Compliance: metrics.ComplianceStats{OverallPercent: 70},
			},
			wantFired: true,
		},
		{
			name:        "AND holds when one sub-condition fails",
			aggregation: alert.AggregateAnd,
			snapshot: metrics.Snapshot{
				Incidents:  metrics.IncidentStats{Open: 6},
				Compliance: metrics.ComplianceStats{OverallPercent: 95},
			},
			wantFired: false,
		},
		{
			name:        "OR fires on a single passing sub-condition",
			aggregation: alert.AggregateOr,
			snapshot: metrics.Snapshot{
				Incidents:  metrics.IncidentStats{Open: 2},
				Compliance: metrics.ComplianceStats{OverallPercent: 70},
			},
			wantFired: true,
		},
		{
			name:        "OR holds when nothing passes",
			aggregation: alert.AggregateOr,
			snapshot: metrics.Snapshot{
				Incidents:  metrics.IncidentStats{Open: 2},
				Compliance: metrics.ComplianceStats{OverallPercent: 95},
			},
			wantFired: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newEngineHarness(t)
			h.snapshots.snap = &tt.snapshot
			h.saveRule(t, fixtures.NewRuleBuilder().
				AsComposite(tt.aggregation, openHigh, complianceLow).
				Build(t))

			fired, err := h.engine.EvaluateAll(context.Background())
			require.NoError(t, err)

			if tt.wantFired {
				require.Len(t, fired, 1)
				values, ok := fired[0].TriggerValue.([]float64)
				require.True(t, ok, "composite trigger value should carry sub-metric values")
				assert.Len(t, values, 2)
			} else {
				assert.Empty(t, fired)
			}
		})
	}
}

func TestEngine_EvaluateAll_SnapshotFailureSkipsRule(t *testing.T) {
	h := newEngineHarness(t)
	h.snapshots.err = assert.AnError
	h.saveRule(t, fixtures.NewRuleBuilder().Build(t))

	fired, err := h.engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestEngine_GetActiveAlerts(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	h.snapshots.snap = &metrics.Snapshot{Incidents: metrics.IncidentStats{Open: 10}}
	h.saveRule(t, fixtures.NewRuleBuilder().Build(t))

	fired, err := h.engine.EvaluateAll(ctx)
	require.NoError(t, err)
	require.Len(t, fired, 1)

	active, err := h.engine.GetActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	_, err = h.engine.Resolve(ctx, fired[0].ID, "ops-lead", "capacity restored")
	require.NoError(t, err)

	active, err = h.engine.GetActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	history, err := h.engine.GetHistory(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
