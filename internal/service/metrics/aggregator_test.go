package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/governance"
	"github.com/aimsgrid/governance-engine/internal/domain/incident"
	"github.com/aimsgrid/governance-engine/internal/testutil"
	"github.com/aimsgrid/governance-engine/internal/testutil/fixtures"
)

type aggregatorHarness struct {
	systems    *testutil.MemorySystemRepository
	compliance *testutil.MemoryComplianceRepository
	oversight  *testutil.MemoryOversightRepository
	incidents  *testutil.MemoryIncidentRepository
	aggregator *Aggregator
}

func newAggregatorHarness(t *testing.T, ttl time.Duration) *aggregatorHarness {
	t.Helper()

	h := &aggregatorHarness{
		systems:    testutil.NewMemorySystemRepository(),
		compliance: testutil.NewMemoryComplianceRepository(),
		oversight:  testutil.NewMemoryOversightRepository(),
		incidents:  testutil.NewMemoryIncidentRepository(),
	}

	agg, err := NewAggregator(h.systems, h.compliance, h.oversight, h.incidents, nil, zap.NewNop(), ttl)
	require.NoError(t, err)
	h.aggregator = agg
	return h
}

func (h *aggregatorHarness) addSystem(t *testing.T, risk governance.RiskCategory) *governance.AISystem {
	t.Helper()

	system := fixtures.NewSystemBuilder().WithRiskCategory(risk).Build(t)
	require.NoError(t, h.systems.Save(context.Background(), system))
	return system
}

func (h *aggregatorHarness) assess(t *testing.T, system *governance.AISystem, clause string, status governance.ComplianceStatus) {
	t.Helper()

	state, err := governance.NewComplianceState(system.ID, clause, status)
	require.NoError(t, err)
	require.NoError(t, h.compliance.Save(context.Background(), state))
}

func TestAggregator_GetSnapshot_CachesWithinTTL(t *testing.T) {
	h := newAggregatorHarness(t, time.Minute)
	ctx := context.Background()

	h.addSystem(t, governance.RiskHigh)

	first, err := h.aggregator.GetSnapshot(ctx, false)
	require.NoError(t, err)

	// a write after the snapshot must not surface until the TTL lapses
	h.addSystem(t, governance.RiskLimited)

	second, err := h.aggregator.GetSnapshot(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, first.CapturedAt, second.CapturedAt, "identical CapturedAt proves the cache hit")
	assert.Equal(t, int64(1), second.Systems.Total)
}

func TestAggregator_GetSnapshot_RecomputesAfterTTL(t *testing.T) {
	h := newAggregatorHarness(t, time.Minute)
	ctx := context.Background()

	h.addSystem(t, governance.RiskHigh)

	first, err := h.aggregator.GetSnapshot(ctx, false)
	require.NoError(t, err)

	// move the clock past the TTL
	h.aggregator.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	h.addSystem(t, governance.RiskLimited)

	second, err := h.aggregator.GetSnapshot(ctx, false)
	require.NoError(t, err)
	assert.NotEqual(t, first.CapturedAt, second.CapturedAt)
	assert.Equal(t, int64(2), second.Systems.Total)
}

func TestAggregator_GetSnapshot_ForceRefreshBypassesCache(t *testing.T) {
	h := newAggregatorHarness(t, time.Minute)
	ctx := context.Background()

	h.addSystem(t, governance.RiskHigh)
	_, err := h.aggregator.GetSnapshot(ctx, false)
	require.NoError(t, err)

	h.addSystem(t, governance.RiskLimited)

	snap, err := h.aggregator.GetSnapshot(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Systems.Total)
}

func TestAggregator_Invalidate_DropsCachedSnapshot(t *testing.T) {
	h := newAggregatorHarness(t, time.Minute)
	ctx := context.Background()

	h.addSystem(t, governance.RiskHigh)
	_, err := h.aggregator.GetSnapshot(ctx, false)
	require.NoError(t, err)

	h.addSystem(t, governance.RiskLimited)
	h.aggregator.Invalidate()

	snap, err := h.aggregator.GetSnapshot(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Systems.Total)
}

func TestAggregator_ComputeCompliance(t *testing.T) {
	tests := []struct {
		name            string
		statuses        []governance.ComplianceStatus
		expectedPercent float64
	}{
		{
			name: "three of four clauses compliant",
			statuses: []governance.ComplianceStatus{
				governance.StatusCompliant,
				governance.StatusCompliant,
				governance.StatusSubstantiallyCompliant,
				governance.StatusNonCompliant,
			},
			expectedPercent: 75.0,
		},
		{
			name: "nothing assessed counts as zero",
			statuses: []governance.ComplianceStatus{
				governance.StatusNotAssessed,
				governance.StatusNotAssessed,
			},
			expectedPercent: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAggregatorHarness(t, time.Minute)
			system := h.addSystem(t, governance.RiskHigh)
			for i, status := range tt.statuses {
				h.assess(t, system, fmt.Sprintf("clause-%d", i), status)
			}

			snap, err := h.aggregator.GetSnapshot(context.Background(), true)
			require.NoError(t, err)
			assert.InDelta(t, tt.expectedPercent, snap.Compliance.OverallPercent, 0.001)
		})
	}
}

func TestAggregator_ComputeIncidents(t *testing.T) {
	h := newAggregatorHarness(t, time.Minute)
	ctx := context.Background()

	open := fixtures.NewIncidentBuilder().WithSeverity(incident.SeverityCritical).Build(t)
	require.NoError(t, h.incidents.Save(ctx, open))

	resolved := fixtures.NewIncidentBuilder().
		WithSeverity(incident.SeverityMarginal).
		Resolved(time.Now().UTC()).
		Build(t)
	require.NoError(t, h.incidents.Save(ctx, resolved))

	snap, err := h.aggregator.GetSnapshot(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, int64(2), snap.Incidents.Total)
	assert.Equal(t, int64(1), snap.Incidents.Open)
	assert.Equal(t, int64(1), snap.Incidents.CriticalOpen)
	assert.Greater(t, snap.Incidents.MeanResolutionHours, 0.0)
}

func TestAggregator_ComputeOversight(t *testing.T) {
	h := newAggregatorHarness(t, time.Minute)
	ctx := context.Background()
	system := h.addSystem(t, governance.RiskHigh)

	for _, actionType := range []governance.OversightActionType{
		governance.OversightReview,
		governance.OversightOverrideAct,
		governance.OversightIntervention,
		governance.OversightIntervention,
	} {
		action, err := governance.NewOversightAction(system.ID, actionType, "alice")
		require.NoError(t, err)
		require.NoError(t, h.oversight.Save(ctx, action))
	}

	snap, err := h.aggregator.GetSnapshot(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, int64(4), snap.Oversight.Total)
	assert.InDelta(t, 0.25, snap.Oversight.OverrideRate, 0.001)
	assert.InDelta(t, 0.75, snap.Oversight.InterventionRate, 0.001)
	assert.Equal(t, int64(3), snap.Oversight.Last24h)
}

func TestAggregator_GetSnapshot_ServesStaleOnRefreshFailure(t *testing.T) {
	h := newAggregatorHarness(t, time.Minute)
	ctx := context.Background()

	system := h.addSystem(t, governance.RiskHigh)
	h.assess(t, system, "clause-1", governance.StatusCompliant)

	first, err := h.aggregator.GetSnapshot(ctx, false)
	require.NoError(t, err)

	h.compliance.FailErr = assert.AnError
	h.compliance.FailReads = true

	stale, err := h.aggregator.GetSnapshot(ctx, true)
	require.NoError(t, err, "stale snapshot must be served, not an error")
	assert.Equal(t, first.CapturedAt, stale.CapturedAt)
}

func TestAggregator_GetExecutiveSummary(t *testing.T) {
	h := newAggregatorHarness(t, time.Minute)
	ctx := context.Background()

	// high-risk system below the 80% threshold
	atRisk := h.addSystem(t, governance.RiskHigh)
	h.assess(t, atRisk, "clause-1", governance.StatusCompliant)
	h.assess(t, atRisk, "clause-2", governance.StatusNonCompliant)

	// fully compliant high-risk system
	healthy := h.addSystem(t, governance.RiskHigh)
	h.assess(t, healthy, "clause-1", governance.StatusCompliant)

	inc := fixtures.NewIncidentBuilder().
		WithSystem(atRisk.ID).
		WithSeverity(incident.SeverityCritical).
		Build(t)
	require.NoError(t, h.incidents.Save(ctx, inc))

	summary, err := h.aggregator.GetExecutiveSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.AtRiskSystems)
	assert.Equal(t, int64(1), summary.CriticalOpenIncidents)
	require.Len(t, summary.TopRiskSystems, 2)
	assert.Equal(t, atRisk.ID, summary.TopRiskSystems[0].SystemID,
		"lower compliance ranks first within the same risk category")
}

func TestAggregator_GetMetricTrend(t *testing.T) {
	h := newAggregatorHarness(t, time.Minute)
	ctx := context.Background()
	h.addSystem(t, governance.RiskHigh)

	start := time.Now().UTC().Add(-24 * time.Hour)
	end := time.Now().UTC()

	trend, err := h.aggregator.GetMetricTrend(ctx, MetricSystemsTotal, start, end, 6)
	require.NoError(t, err)

	require.Len(t, trend.Buckets, 4)
	assert.Equal(t, TrendStable, trend.Direction)
	for _, bucket := range trend.Buckets {
		assert.Equal(t, 1.0, bucket.Value)
	}

	_, err = h.aggregator.GetMetricTrend(ctx, "bogusMetric", start, end, 6)
	require.Error(t, err)

	_, err = h.aggregator.GetMetricTrend(ctx, MetricSystemsTotal, end, start, 6)
	require.Error(t, err)
}
