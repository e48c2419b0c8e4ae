package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/testutil"
)

// seedEntry stores an entry with an explicit sequence number, bypassing the
// write path, to shape the store for integrity scans
func seedEntry(t *testing.T, repo *testutil.MemoryAuditRepository, seq int64, opts ...func(*audit.Entry)) {
	t.Helper()

	entry := newTestEntry(t, "inc-seeded")
	entry.SequenceNum = seq
	entry.Timestamp = time.Now().UTC()
	for _, opt := range opts {
		opt(entry)
	}
	require.NoError(t, repo.Store(context.Background(), entry))
}

func TestLog_VerifyIntegrity(t *testing.T) {
	tests := []struct {
		name         string
		sequences    []int64
		expectedGaps []audit.SequenceGap
	}{
		{
			name:         "empty store is intact",
			sequences:    nil,
			expectedGaps: nil,
		},
		{
			name:         "contiguous run is intact",
			sequences:    []int64{1, 2, 3, 4, 5},
			expectedGaps: nil,
		},
		{
			name:         "single missing number",
			sequences:    []int64{1, 2, 4, 5},
			expectedGaps: []audit.SequenceGap{{From: 3, To: 3}},
		},
		{
			name:         "missing run",
			sequences:    []int64{1, 5, 6},
			expectedGaps: []audit.SequenceGap{{From: 2, To: 4}},
		},
		{
			name:         "multiple gaps",
			sequences:    []int64{1, 3, 7},
			expectedGaps: []audit.SequenceGap{{From: 2, To: 2}, {From: 4, To: 6}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := testutil.NewMemoryAuditRepository()
			for _, seq := range tt.sequences {
				seedEntry(t, repo, seq)
			}
			log := newTestLog(t, repo, testConfig())

			report, err := log.VerifyIntegrity(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.expectedGaps, report.Gaps)
			assert.Equal(t, len(tt.expectedGaps) == 0, report.OK())
			assert.Equal(t, int64(len(tt.sequences)), report.EntriesChecked)
			assert.False(t, report.CheckedAt.IsZero())
		})
	}
}

func TestLog_GetEntityTrail(t *testing.T) {
	repo := testutil.NewMemoryAuditRepository()
	log := newTestLog(t, repo, testConfig())
	ctx := context.Background()

	for i, id := range []string{"inc-1", "inc-2", "inc-1"} {
		seedEntry(t, repo, int64(i+1), func(e *audit.Entry) {
			e.EntityID = id
		})
	}

	trail, err := log.GetEntityTrail(ctx, "incident", "inc-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, int64(1), trail[0].SequenceNum, "trail reads oldest-first")
	assert.Equal(t, int64(3), trail[1].SequenceNum)

	_, err = log.GetEntityTrail(ctx, "", "inc-1")
	require.Error(t, err)
}

func TestLog_GetEntitySummary(t *testing.T) {
	repo := testutil.NewMemoryAuditRepository()
	log := newTestLog(t, repo, testConfig())
	ctx := context.Background()

	seedEntry(t, repo, 1, func(e *audit.Entry) {
		e.EntityID = "inc-1"
		e.ActorID = "alice"
		e.ActorType = audit.ActorHuman
	})
	seedEntry(t, repo, 2, func(e *audit.Entry) {
		e.EntityID = "inc-1"
		e.EventType = audit.EventIncidentResolved
		e.Category = audit.EventIncidentResolved.Category()
		e.Action = audit.ActionResolve
		e.ActorID = "alice"
		e.ActorType = audit.ActorHuman
	})

	summary, err := log.GetEntitySummary(ctx, "incident", "inc-1")
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.TotalEntries)
	assert.Equal(t, int64(1), summary.ByAction[audit.ActionCreate])
	assert.Equal(t, int64(1), summary.ByAction[audit.ActionResolve])
	assert.Equal(t, int64(2), summary.ByActor["alice"])
	assert.False(t, summary.FirstSeen.IsZero())
	assert.False(t, summary.LastSeen.Before(summary.FirstSeen))
}

func TestLog_GetActorActivity(t *testing.T) {
	repo := testutil.NewMemoryAuditRepository()
	log := newTestLog(t, repo, testConfig())
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-time.Hour)

	seedEntry(t, repo, 1, func(e *audit.Entry) {
		e.ActorID = "alice"
		e.Timestamp = cutoff.Add(-time.Hour) // before the window
	})
	seedEntry(t, repo, 2, func(e *audit.Entry) {
		e.ActorID = "alice"
	})
	seedEntry(t, repo, 3, func(e *audit.Entry) {
		e.ActorID = "bob"
	})

	entries, err := log.GetActorActivity(ctx, "alice", cutoff)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].SequenceNum)

	_, err = log.GetActorActivity(ctx, "", cutoff)
	require.Error(t, err)
}

func TestLog_CountSince(t *testing.T) {
	repo := testutil.NewMemoryAuditRepository()
	log := newTestLog(t, repo, testConfig())
	ctx := context.Background()

	seedEntry(t, repo, 1)
	seedEntry(t, repo, 2)
	seedEntry(t, repo, 3, func(e *audit.Entry) {
		e.EventType = audit.EventIncidentResolved
		e.Category = audit.EventIncidentResolved.Category()
		e.Action = audit.ActionResolve
	})

	count, err := log.CountSince(ctx, audit.EventIncidentCreated, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = log.CountSince(ctx, audit.EventIncidentCreated, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
