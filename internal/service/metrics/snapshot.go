package metrics

import (
	"fmt"
	"time"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/domain/governance"
	"github.com/aimsgrid/governance-engine/internal/domain/incident"
)

// SystemStats aggregates the registered-system population
type SystemStats struct {
	Total            int64                               `json:"total"`
	ByRiskCategory   map[governance.RiskCategory]int64   `json:"by_risk_category"`
	ByOversightLevel map[governance.OversightLevel]int64 `json:"by_oversight_level"`
}

// IncidentStats aggregates the incident corpus
type IncidentStats struct {
	Total               int64                       `json:"total"`
	Open                int64                       `json:"open"`
	CriticalOpen        int64                       `json:"critical_open"`
	BySeverity          map[incident.Severity]int64 `json:"by_severity"`
	ByStep              map[incident.Step]int64     `json:"by_step"`
	MeanResolutionHours float64                     `json:"mean_resolution_hours"`
}

// ComplianceStats aggregates compliance posture across systems
type ComplianceStats struct {
	OverallPercent      float64 `json:"overall_percent"`
	CompliantSystems    int64   `json:"compliant_systems"`
	PartiallyCompliant  int64   `json:"partially_compliant_systems"`
	NonCompliantSystems int64   `json:"non_compliant_systems"`
	AssessmentsTotal    int64   `json:"assessments_total"`
}

// OversightStats aggregates recorded human-oversight activity
type OversightStats struct {
	Total            int64                                    `json:"total"`
	ByType           map[governance.OversightActionType]int64 `json:"by_type"`
	OverrideRate     float64                                  `json:"override_rate"`
	InterventionRate float64                                  `json:"intervention_rate"`
	Last24h          int64                                    `json:"last_24h"`
}

// Snapshot is an immutable point-in-time aggregate. It is replaced wholesale
// on refresh, never patched in place.
type Snapshot struct {
	Systems    SystemStats     `json:"systems"`
	Incidents  IncidentStats   `json:"incidents"`
	Compliance ComplianceStats `json:"compliance"`
	Oversight  OversightStats  `json:"oversight"`
	CapturedAt time.Time       `json:"captured_at"`
}

// Metric names form a fixed, closed vocabulary resolved against snapshot
// fields. Alert rules reference these names.
const (
	MetricSystemsTotal          = "systemsTotal"
	MetricSystemsHighRisk       = "systemsHighRisk"
	MetricIncidentsTotal        = "incidentsTotal"
	MetricIncidentsOpen         = "incidentsOpen"
	MetricIncidentsCriticalOpen = "incidentsCriticalOpen"
	MetricMeanResolutionHours   = "meanResolutionHours"
	MetricComplianceOverall     = "complianceOverall"
	MetricNonCompliantSystems   = "nonCompliantSystems"
	MetricOversightTotal        = "oversightTotal"
	MetricOverrideRate          = "overrideRate"
	MetricInterventionRate      = "interventionRate"
	MetricOversightLast24h      = "oversightInterventions24h"
)

// KnownMetrics lists the full metric vocabulary
var KnownMetrics = []string{
	MetricSystemsTotal,
	MetricSystemsHighRisk,
	MetricIncidentsTotal,
	MetricIncidentsOpen,
	MetricIncidentsCriticalOpen,
	MetricMeanResolutionHours,
	MetricComplianceOverall,
	MetricNonCompliantSystems,
	MetricOversightTotal,
	MetricOverrideRate,
	MetricInterventionRate,
	MetricOversightLast24h,
}

// IsKnownMetric reports whether the name is part of the snapshot vocabulary
func IsKnownMetric(name string) bool {
	for _, m := range KnownMetrics {
		if m == name {
			return true
		}
	}
	return false
}

// Resolve maps a metric name onto its snapshot value. Unknown names are a
// validation error the caller must isolate per rule.
func (s *Snapshot) Resolve(metric string) (float64, error) {
	switch metric {
	case MetricSystemsTotal:
		return float64(s.Systems.Total), nil
	case MetricSystemsHighRisk:
		return float64(s.Systems.ByRiskCategory[governance.RiskHigh] +
			s.Systems.ByRiskCategory[governance.RiskUnacceptable]), nil
	case MetricIncidentsTotal:
		return float64(s.Incidents.Total), nil
	case MetricIncidentsOpen:
		return float64(s.Incidents.Open), nil
	case MetricIncidentsCriticalOpen:
		return float64(s.Incidents.CriticalOpen), nil
	case MetricMeanResolutionHours:
		return s.Incidents.MeanResolutionHours, nil
	case MetricComplianceOverall:
		return s.Compliance.OverallPercent, nil
	case MetricNonCompliantSystems:
		return float64(s.Compliance.NonCompliantSystems), nil
	case MetricOversightTotal:
		return float64(s.Oversight.Total), nil
	case MetricOverrideRate:
		return s.Oversight.OverrideRate, nil
	case MetricInterventionRate:
		return s.Oversight.InterventionRate, nil
	case MetricOversightLast24h:
		return float64(s.Oversight.Last24h), nil
	default:
		return 0, errors.NewValidationError("UNKNOWN_METRIC",
			fmt.Sprintf("metric %q is not in the snapshot vocabulary", metric))
	}
}
