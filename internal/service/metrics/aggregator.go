package metrics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/domain/governance"
	"github.com/aimsgrid/governance-engine/internal/domain/incident"
)

// DefaultCacheTTL is how long a snapshot stays fresh
const DefaultCacheTTL = 60 * time.Second

// SnapshotCache mirrors the current snapshot into an external cache so other
// processes can read it. Failures are logged, never fatal.
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snapshot *Snapshot, ttl time.Duration) error
	GetSnapshot(ctx context.Context) (*Snapshot, error)
}

// Aggregator computes point-in-time governance statistics with a short-TTL
// cache. The cached snapshot is exclusively owned and only ever replaced
// wholesale.
type Aggregator struct {
	systemRepo     governance.SystemRepository
	complianceRepo governance.ComplianceRepository
	oversightRepo  governance.OversightRepository
	incidentRepo   incident.Repository

	cache  SnapshotCache
	logger *zap.Logger
	ttl    time.Duration

	mu       sync.RWMutex
	snapshot *Snapshot

	// now is swappable for tests
	now func() time.Time
}

// NewAggregator builds the aggregator. cache may be nil; ttl <= 0 uses the default.
func NewAggregator(
	systemRepo governance.SystemRepository,
	complianceRepo governance.ComplianceRepository,
	oversightRepo governance.OversightRepository,
	incidentRepo incident.Repository,
	cache SnapshotCache,
	logger *zap.Logger,
	ttl time.Duration,
) (*Aggregator, error) {
	if systemRepo == nil || complianceRepo == nil || oversightRepo == nil || incidentRepo == nil {
		return nil, errors.NewValidationError("MISSING_REPOSITORY",
			"all four domain repositories are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Aggregator{
		systemRepo:     systemRepo,
		complianceRepo: complianceRepo,
		oversightRepo:  oversightRepo,
		incidentRepo:   incidentRepo,
		cache:          cache,
		logger:         logger,
		ttl:            ttl,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

// GetSnapshot returns the cached snapshot while it is younger than the TTL,
// unless forceRefresh demands a recompute. A failed refresh preserves the
// stale snapshot rather than replacing it with partial data; with no cache at
// all the error propagates.
func (a *Aggregator) GetSnapshot(ctx context.Context, forceRefresh bool) (*Snapshot, error) {
	if !forceRefresh {
		if snap := a.cached(); snap != nil {
			return snap, nil
		}
	}

	snap, err := a.compute(ctx)
	if err != nil {
		a.mu.RLock()
		stale := a.snapshot
		a.mu.RUnlock()
		if stale != nil {
			a.logger.Warn("snapshot refresh failed, serving stale snapshot",
				zap.Time("captured_at", stale.CapturedAt),
				zap.Error(err),
			)
			return stale, nil
		}
		return nil, err
	}

	a.mu.Lock()
	a.snapshot = snap
	a.mu.Unlock()

	a.mirror(ctx, snap)
	return snap, nil
}

// Invalidate discards the cached snapshot so the next read recomputes
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	a.snapshot = nil
	a.mu.Unlock()
}

func (a *Aggregator) cached() *Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.snapshot == nil {
		return nil
	}
	if a.now().Sub(a.snapshot.CapturedAt) >= a.ttl {
		return nil
	}
	return a.snapshot
}

// compute issues the four partial aggregations in parallel and combines them
// with a fresh timestamp
func (a *Aggregator) compute(ctx context.Context) (*Snapshot, error) {
	var (
		systems    SystemStats
		incidents  IncidentStats
		compliance ComplianceStats
		oversight  OversightStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		systems, err = a.computeSystems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		incidents, err = a.computeIncidents(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		compliance, err = a.computeCompliance(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		oversight, err = a.computeOversight(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, errors.NewDependencyError("metrics repositories",
			"snapshot aggregation failed").WithCause(err)
	}

	return &Snapshot{
		Systems:    systems,
		Incidents:  incidents,
		Compliance: compliance,
		Oversight:  oversight,
		CapturedAt: a.now(),
	}, nil
}

func (a *Aggregator) computeSystems(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{
		ByRiskCategory:   make(map[governance.RiskCategory]int64),
		ByOversightLevel: make(map[governance.OversightLevel]int64),
	}

	systems, err := a.systemRepo.List(ctx, governance.SystemFilter{})
	if err != nil {
		return stats, err
	}

	stats.Total = int64(len(systems))
	for _, s := range systems {
		stats.ByRiskCategory[s.RiskCategory]++
		stats.ByOversightLevel[s.OversightLevel]++
	}
	return stats, nil
}

func (a *Aggregator) computeIncidents(ctx context.Context) (IncidentStats, error) {
	stats := IncidentStats{
		BySeverity: make(map[incident.Severity]int64),
		ByStep:     make(map[incident.Step]int64),
	}

	incidents, err := a.incidentRepo.List(ctx, incident.Filter{})
	if err != nil {
		return stats, err
	}

	var resolvedCount int64
	var resolutionSum time.Duration

	stats.Total = int64(len(incidents))
	for _, inc := range incidents {
		stats.BySeverity[inc.Severity]++
		stats.ByStep[inc.CurrentStep]++
		if inc.IsOpen() {
			stats.Open++
			if inc.Severity == incident.SeverityCritical || inc.Severity == incident.SeverityCatastrophic {
				stats.CriticalOpen++
			}
		} else {
			resolvedCount++
			resolutionSum += inc.ResolutionTime()
		}
	}

	if resolvedCount > 0 {
		stats.MeanResolutionHours = resolutionSum.Hours() / float64(resolvedCount)
	}
	return stats, nil
}

func (a *Aggregator) computeCompliance(ctx context.Context) (ComplianceStats, error) {
	var stats ComplianceStats

	systems, err := a.systemRepo.List(ctx, governance.SystemFilter{})
	if err != nil {
		return stats, err
	}

	var percentSum float64
	var assessed int64

	for _, s := range systems {
		states, err := a.complianceRepo.ListBySystem(ctx, s.ID)
		if err != nil {
			return stats, err
		}
		stats.AssessmentsTotal += int64(len(states))

		percent := governance.CompliancePercent(states)
		if len(states) > 0 {
			percentSum += percent
			assessed++
		}

		switch {
		case percent >= 100:
			stats.CompliantSystems++
		case percent > 0:
			stats.PartiallyCompliant++
		default:
			stats.NonCompliantSystems++
		}
	}

	if assessed > 0 {
		stats.OverallPercent = percentSum / float64(assessed)
	}
	return stats, nil
}

func (a *Aggregator) computeOversight(ctx context.Context) (OversightStats, error) {
	stats := OversightStats{
		ByType: make(map[governance.OversightActionType]int64),
	}

	actions, err := a.oversightRepo.List(ctx, governance.OversightFilter{})
	if err != nil {
		return stats, err
	}

	dayAgo := a.now().Add(-24 * time.Hour)
	var overrides, interventions int64

	stats.Total = int64(len(actions))
	for _, act := range actions {
		stats.ByType[act.ActionType]++
		if act.ActionType == governance.OversightOverrideAct {
			overrides++
		}
		if act.IsIntervention() {
			interventions++
			if act.RecordedAt.After(dayAgo) {
				stats.Last24h++
			}
		}
	}

	if stats.Total > 0 {
		stats.OverrideRate = float64(overrides) / float64(stats.Total)
		stats.InterventionRate = float64(interventions) / float64(stats.Total)
	}
	return stats, nil
}

// mirror writes the fresh snapshot to the external cache, best-effort
func (a *Aggregator) mirror(ctx context.Context, snap *Snapshot) {
	if a.cache == nil {
		return
	}
	if err := a.cache.SetSnapshot(ctx, snap, a.ttl); err != nil {
		a.logger.Warn("snapshot cache mirror failed", zap.Error(err))
	}
}
