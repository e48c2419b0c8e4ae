package governance

import (
	"time"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// ComplianceStatus is the assessed state of one system against one clause
// (atom) of the AIMS framework
type ComplianceStatus string

const (
	StatusCompliant              ComplianceStatus = "COMPLIANT"
	StatusSubstantiallyCompliant ComplianceStatus = "SUBSTANTIALLY_COMPLIANT"
	StatusPartiallyCompliant     ComplianceStatus = "PARTIALLY_COMPLIANT"
	StatusNonCompliant           ComplianceStatus = "NON_COMPLIANT"
	StatusNotAssessed            ComplianceStatus = "NOT_ASSESSED"
)

// IsValid reports whether the status is known
func (s ComplianceStatus) IsValid() bool {
	switch s {
	case StatusCompliant, StatusSubstantiallyCompliant, StatusPartiallyCompliant,
		StatusNonCompliant, StatusNotAssessed:
		return true
	default:
		return false
	}
}

// CountsTowardCompliance reports whether this status counts as compliant when
// computing a system's compliance percentage
func (s ComplianceStatus) CountsTowardCompliance() bool {
	return s == StatusCompliant || s == StatusSubstantiallyCompliant
}

// ComplianceState records one assessment of one clause for one system
type ComplianceState struct {
	ID         uuid.UUID        `json:"id"`
	SystemID   uuid.UUID        `json:"system_id"`
	ClauseID   string           `json:"clause_id"`
	Status     ComplianceStatus `json:"status"`
	AssessorID string           `json:"assessor_id,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	AssessedAt time.Time        `json:"assessed_at"`
}

// NewComplianceState creates a validated assessment record
func NewComplianceState(systemID uuid.UUID, clauseID string, status ComplianceStatus) (*ComplianceState, error) {
	if systemID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_SYSTEM_ID", "system ID is required")
	}

	if clauseID == "" {
		return nil, errors.NewValidationError("MISSING_CLAUSE_ID", "clause ID is required")
	}

	if !status.IsValid() {
		return nil, errors.NewValidationError("INVALID_COMPLIANCE_STATUS",
			"compliance status must be a known state")
	}

	return &ComplianceState{
		ID:         uuid.New(),
		SystemID:   systemID,
		ClauseID:   clauseID,
		Status:     status,
		AssessedAt: time.Now().UTC(),
	}, nil
}

// CompliancePercent computes the compliance percentage for a set of states:
// (compliant + substantially-compliant) / total * 100, or 0 with no states.
func CompliancePercent(states []*ComplianceState) float64 {
	if len(states) == 0 {
		return 0
	}

	var compliant int
	for _, st := range states {
		if st.Status.CountsTowardCompliance() {
			compliant++
		}
	}

	return float64(compliant) / float64(len(states)) * 100
}
