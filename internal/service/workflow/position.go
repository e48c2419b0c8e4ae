package workflow

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/domain/incident"
	"github.com/aimsgrid/governance-engine/internal/domain/values"
)

// Position vector component indexes. The vector is ordered and fixed; changing
// an index invalidates every stored position.
const (
	dimSeverity = iota
	dimAffectedUsers
	dimImpactDepth
	dimDetectionLag
	dimResolutionTime
	dimRegulatoryExposure
	dimReputationalRisk
	dimSystemicRisk
	dimTechnicalComplexity
	dimDataSensitivity
	dimRecurrenceLikelihood
	dimContainmentDifficulty
	dimComplianceImpact
)

// Normalization constants. User counts saturate at one million on a log
// scale; time dimensions saturate at thirty days; financial impact saturates
// at ten million on a log scale.
const (
	maxLogUsers       = 6.0 // log10(1_000_000)
	maxLogFinancial   = 7.0 // log10(10_000_000)
	saturationHours   = 720.0
	defaultComponent  = 0.5
	severityWeight    = 0.6
	financialWeight   = 0.4
	regulatoryWeight  = 0.7
	sensitivityWeight = 0.3
)

// PositionParams are the assessment inputs the position vector is derived
// from. Optional components default to 0.5 when nil; Severity and the timing
// fields are filled in by the workflow from the incident itself.
type PositionParams struct {
	Severity           incident.Severity
	AffectedUsers      int64
	FinancialImpact    decimal.Decimal
	DetectionLag       time.Duration
	ResolutionTime     time.Duration
	RegulatoryExposure bool

	// Overridable severity-derived components, each in [0,1]
	ReputationalRisk *float64
	SystemicRisk     *float64

	// Optional assessed components, each in [0,1]
	TechnicalComplexity   *float64
	DataSensitivity       *float64
	RecurrenceLikelihood  *float64
	ContainmentDifficulty *float64
}

// CalculatePosition derives the fixed-length position vector from assessment
// parameters. Every sub-normalization is a pure function of its inputs, so
// identical parameters always produce an identical vector.
func CalculatePosition(params PositionParams) (values.TensorPosition, error) {
	if !params.Severity.IsValid() {
		return values.TensorPosition{}, errors.NewValidationError("INVALID_SEVERITY",
			"position calculation requires a valid severity")
	}

	severity := normalizeSeverity(params.Severity)
	sensitivity, err := optionalComponent("data sensitivity", params.DataSensitivity, defaultComponent)
	if err != nil {
		return values.TensorPosition{}, err
	}

	reputational, err := optionalComponent("reputational risk", params.ReputationalRisk, severity)
	if err != nil {
		return values.TensorPosition{}, err
	}
	systemic, err := optionalComponent("systemic risk", params.SystemicRisk, severity*0.8)
	if err != nil {
		return values.TensorPosition{}, err
	}
	complexity, err := optionalComponent("technical complexity", params.TechnicalComplexity, defaultComponent)
	if err != nil {
		return values.TensorPosition{}, err
	}
	recurrence, err := optionalComponent("recurrence likelihood", params.RecurrenceLikelihood, defaultComponent)
	if err != nil {
		return values.TensorPosition{}, err
	}
	containment, err := optionalComponent("containment difficulty", params.ContainmentDifficulty, defaultComponent)
	if err != nil {
		return values.TensorPosition{}, err
	}

	regulatory := 0.0
	if params.RegulatoryExposure {
		regulatory = 1.0
	}

	components := make([]float64, values.TensorDimensions)
	components[dimSeverity] = severity
	components[dimAffectedUsers] = normalizeLogScale(float64(params.AffectedUsers), maxLogUsers)
	components[dimImpactDepth] = severityWeight*severity +
		financialWeight*normalizeLogScale(params.FinancialImpact.InexactFloat64(), maxLogFinancial)
	components[dimDetectionLag] = normalizeElapsed(params.DetectionLag)
	components[dimResolutionTime] = normalizeElapsed(params.ResolutionTime)
	components[dimRegulatoryExposure] = regulatory
	components[dimReputationalRisk] = reputational
	components[dimSystemicRisk] = systemic
	components[dimTechnicalComplexity] = complexity
	components[dimDataSensitivity] = sensitivity
	components[dimRecurrenceLikelihood] = recurrence
	components[dimContainmentDifficulty] = containment
	components[dimComplianceImpact] = regulatoryWeight*regulatory + sensitivityWeight*sensitivity

	return values.NewTensorPosition(components)
}

// normalizeSeverity maps the four ordinal severities onto [0,1]
func normalizeSeverity(s incident.Severity) float64 {
	ord := s.Ordinal()
	if ord < 0 {
		return 0
	}
	return float64(ord) / 3.0
}

// normalizeLogScale compresses a non-negative magnitude onto [0,1] with
// log10, saturating at 10^maxLog
func normalizeLogScale(value, maxLog float64) float64 {
	if value <= 0 {
		return 0
	}
	scaled := math.Log10(value+1) / maxLog
	if scaled > 1 {
		return 1
	}
	return scaled
}

// normalizeElapsed buckets an elapsed duration piecewise-linearly by hours:
// the first day covers [0,0.25], the first week (0.25,0.6], then linear up to
// saturation at thirty days.
func normalizeElapsed(d time.Duration) float64 {
	hours := d.Hours()
	switch {
	case hours <= 0:
		return 0
	case hours <= 24:
		return 0.25 * hours / 24
	case hours <= 168:
		return 0.25 + 0.35*(hours-24)/144
	case hours < saturationHours:
		return 0.6 + 0.4*(hours-168)/(saturationHours-168)
	default:
		return 1
	}
}

func optionalComponent(name string, supplied *float64, fallback float64) (float64, error) {
	if supplied == nil {
		return fallback, nil
	}
	v := *supplied
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, errors.NewValidationError("COMPONENT_OUT_OF_RANGE",
			name+" must be within [0,1]")
	}
	return v, nil
}
