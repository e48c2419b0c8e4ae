package metrics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/governance"
)

// atRiskComplianceThreshold is the compliance percentage below which a
// high-risk system counts as at-risk
const atRiskComplianceThreshold = 80.0

// SystemRanking places one system on the executive risk list
type SystemRanking struct {
	SystemID          uuid.UUID               `json:"system_id"`
	Name              string                  `json:"name"`
	RiskCategory      governance.RiskCategory `json:"risk_category"`
	CompliancePercent float64                 `json:"compliance_percent"`
}

// ExecutiveSummary is the leadership view derived from current state
type ExecutiveSummary struct {
	AtRiskSystems            int64           `json:"at_risk_systems"`
	CriticalOpenIncidents    int64           `json:"critical_open_incidents"`
	OverallComplianceScore   int             `json:"overall_compliance_score"`
	OversightInterventions24 int64           `json:"oversight_interventions_24h"`
	TopRiskSystems           []SystemRanking `json:"top_risk_systems"`
	GeneratedAt              time.Time       `json:"generated_at"`
}

// GetExecutiveSummary derives the summary view: at-risk systems are high or
// unacceptable risk with compliance below 80%; the top five systems rank by
// risk category first, then ascending compliance.
func (a *Aggregator) GetExecutiveSummary(ctx context.Context) (*ExecutiveSummary, error) {
	snap, err := a.GetSnapshot(ctx, false)
	if err != nil {
		return nil, err
	}

	systems, err := a.systemRepo.List(ctx, governance.SystemFilter{})
	if err != nil {
		return nil, err
	}

	rankings := make([]SystemRanking, 0, len(systems))
	var atRisk int64

	for _, s := range systems {
		states, err := a.complianceRepo.ListBySystem(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		percent := governance.CompliancePercent(states)

		highRisk := s.RiskCategory == governance.RiskHigh || s.RiskCategory == governance.RiskUnacceptable
		if highRisk && percent < atRiskComplianceThreshold {
			atRisk++
		}

		rankings = append(rankings, SystemRanking{
			SystemID:          s.ID,
			Name:              s.Name,
			RiskCategory:      s.RiskCategory,
			CompliancePercent: percent,
		})
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		ri, rj := rankings[i].RiskCategory.Rank(), rankings[j].RiskCategory.Rank()
		if ri != rj {
			return ri > rj
		}
		return rankings[i].CompliancePercent < rankings[j].CompliancePercent
	})
	if len(rankings) > 5 {
		rankings = rankings[:5]
	}

	return &ExecutiveSummary{
		AtRiskSystems:            atRisk,
		CriticalOpenIncidents:    snap.Incidents.CriticalOpen,
		OverallComplianceScore:   int(math.Round(snap.Compliance.OverallPercent)),
		OversightInterventions24: snap.Oversight.Last24h,
		TopRiskSystems:           rankings,
		GeneratedAt:              a.now(),
	}, nil
}
