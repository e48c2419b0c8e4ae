package eventbus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	auditsvc "github.com/aimsgrid/governance-engine/internal/service/audit"

	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/testutil"
	"github.com/aimsgrid/governance-engine/internal/testutil/fixtures"
)

func newTestBus(t *testing.T) (*Bus, *testutil.MemoryAuditRepository, *auditsvc.Log) {
	t.Helper()

	repo := testutil.NewMemoryAuditRepository()
	log, err := auditsvc.NewLog(context.Background(), auditsvc.Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
		WriteTimeout:  5 * time.Second,
	}, repo, nil, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = log.Close(context.Background())
	})

	bus, err := New(log, nil, zap.NewNop())
	require.NoError(t, err)
	return bus, repo, log
}

func testEvent() Event {
	return Event{
		Type:       audit.EventIncidentCreated,
		EntityType: EntityIncident,
		EntityID:   "inc-1",
		Action:     audit.ActionCreate,
	}
}

func TestBus_On_ReceivesEmittedEvents(t *testing.T) {
	bus, _, _ := newTestBus(t)
	ctx := context.Background()

	var received []Event
	_, err := bus.On(audit.EventIncidentCreated, func(_ context.Context, e Event) error {
		received = append(received, e)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Emit(ctx, testEvent()))
	require.NoError(t, bus.Emit(ctx, testEvent()))

	require.Len(t, received, 2)
	assert.Equal(t, "inc-1", received[0].EntityID)
}

func TestBus_On_RejectsUnknownEventType(t *testing.T) {
	bus, _, _ := newTestBus(t)

	_, err := bus.On(audit.EventType("bogus.event"), func(context.Context, Event) error {
		return nil
	})
	require.Error(t, err)

	_, err = bus.On(audit.EventIncidentCreated, nil)
	require.Error(t, err)
}

func TestBus_Once_FiresSingleTime(t *testing.T) {
	bus, _, _ := newTestBus(t)
	ctx := context.Background()

	calls := 0
	_, err := bus.Once(audit.EventIncidentCreated, func(context.Context, Event) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, bus.HandlerCount(audit.EventIncidentCreated))

	require.NoError(t, bus.Emit(ctx, testEvent()))
	require.NoError(t, bus.Emit(ctx, testEvent()))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.HandlerCount(audit.EventIncidentCreated))
}

func TestBus_Off_StopsDelivery(t *testing.T) {
	bus, _, _ := newTestBus(t)
	ctx := context.Background()

	calls := 0
	sub, err := bus.On(audit.EventIncidentCreated, func(context.Context, Event) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Emit(ctx, testEvent()))
	bus.Off(sub)
	require.NoError(t, bus.Emit(ctx, testEvent()))

	assert.Equal(t, 1, calls)
}

func TestBus_Emit_QueuesAuditWrite(t *testing.T) {
	bus, repo, log := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.Emit(ctx, testEvent()))

	// queued path: the entry sits in the audit queue until the next flush
	assert.Equal(t, 1, log.Pending())
	assert.Equal(t, 0, repo.Len())

	require.NoError(t, log.Flush(ctx))
	require.Equal(t, 1, repo.Len())
	assert.Equal(t, audit.EventIncidentCreated, repo.All()[0].EventType)
}

func TestBus_EmitCritical_WritesSynchronously(t *testing.T) {
	bus, repo, _ := newTestBus(t)
	ctx := context.Background()

	var storedAtDispatch int
	_, err := bus.On(audit.EventIncidentCreated, func(context.Context, Event) error {
		storedAtDispatch = repo.Len()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.EmitCritical(ctx, testEvent()))

	assert.Equal(t, 1, storedAtDispatch, "audit write must precede handler dispatch")
	require.Equal(t, 1, repo.Len())
	assert.Equal(t, int64(1), repo.All()[0].SequenceNum)
}

func TestBus_Emit_RejectsMalformedEvent(t *testing.T) {
	bus, repo, _ := newTestBus(t)

	err := bus.Emit(context.Background(), Event{Type: "bogus"})
	require.Error(t, err)
	assert.Equal(t, 0, repo.Len())
}

func TestBus_Dispatch_IsolatesHandlerFailures(t *testing.T) {
	bus, _, _ := newTestBus(t)
	ctx := context.Background()

	order := []string{}
	_, err := bus.On(audit.EventIncidentCreated, func(context.Context, Event) error {
		order = append(order, "failing")
		return fmt.Errorf("handler exploded")
	})
	require.NoError(t, err)
	_, err = bus.On(audit.EventIncidentCreated, func(context.Context, Event) error {
		order = append(order, "panicking")
		panic("handler panicked")
	})
	require.NoError(t, err)
	_, err = bus.On(audit.EventIncidentCreated, func(context.Context, Event) error {
		order = append(order, "healthy")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Emit(ctx, testEvent()))
	assert.Equal(t, []string{"failing", "panicking", "healthy"}, order)
}

func TestBus_EmitCritical_DistinctSequencesPerEmit(t *testing.T) {
	bus, repo, _ := newTestBus(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.EmitCritical(ctx, testEvent()))
	}

	entries, err := repo.ListBySequence(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.SequenceNum)
	}
}

func TestBus_ConvenienceEmitters(t *testing.T) {
	bus, repo, _ := newTestBus(t)
	ctx := context.Background()

	system := fixtures.NewSystemBuilder().Build(t)
	require.NoError(t, bus.EmitSystemRegistered(ctx, system, "alice"))

	inc := fixtures.NewIncidentBuilder().WithSystem(system.ID).Build(t)
	require.NoError(t, bus.EmitIncidentCreated(ctx, inc, ""))

	// incident creation is critical and lands synchronously
	require.Equal(t, 1, repo.Len())
	entry := repo.All()[0]
	assert.Equal(t, audit.EventIncidentCreated, entry.EventType)
	assert.Equal(t, EntityIncident, entry.EntityType)
	assert.Equal(t, audit.ActorSystem, entry.ActorType)
	assert.NotEmpty(t, entry.After)
}
