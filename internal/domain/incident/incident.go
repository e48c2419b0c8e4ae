package incident

import (
	"time"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/domain/values"
)

// Severity classifies incident impact, ordered from least to most severe
type Severity string

const (
	SeverityNegligible   Severity = "NEGLIGIBLE"
	SeverityMarginal     Severity = "MARGINAL"
	SeverityCritical     Severity = "CRITICAL"
	SeverityCatastrophic Severity = "CATASTROPHIC"
)

// IsValid reports whether the severity is known
func (s Severity) IsValid() bool {
	switch s {
	case SeverityNegligible, SeverityMarginal, SeverityCritical, SeverityCatastrophic:
		return true
	default:
		return false
	}
}

// Ordinal returns the severity rank starting at 0 for NEGLIGIBLE, or -1 if unknown
func (s Severity) Ordinal() int {
	switch s {
	case SeverityNegligible:
		return 0
	case SeverityMarginal:
		return 1
	case SeverityCritical:
		return 2
	case SeverityCatastrophic:
		return 3
	default:
		return -1
	}
}

// DetectionMethod records how an incident surfaced
type DetectionMethod string

const (
	DetectedByMonitoring DetectionMethod = "AUTOMATED_MONITORING"
	DetectedByUserReport DetectionMethod = "USER_REPORT"
	DetectedByAudit      DetectionMethod = "INTERNAL_AUDIT"
	DetectedByExternal   DetectionMethod = "EXTERNAL_NOTIFICATION"
)

// Incident is one AI incident moving through the seven-step response workflow
type Incident struct {
	ID               uuid.UUID       `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	AffectedSystemID uuid.UUID       `json:"affected_system_id"`
	Severity         Severity        `json:"severity"`
	CurrentStep      Step            `json:"current_step"`
	DetectionMethod  DetectionMethod `json:"detection_method,omitempty"`

	OccurredAt time.Time  `json:"occurred_at"`
	DetectedAt time.Time  `json:"detected_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	RootCause        string `json:"root_cause,omitempty"`
	CorrectiveAction string `json:"corrective_action,omitempty"`
	LessonsLearned   string `json:"lessons_learned,omitempty"`
	NotificationSent bool   `json:"notification_sent"`

	// TensorPosition stays zero until the assessment step computes it
	TensorPosition values.TensorPosition `json:"tensor_position"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewIncident creates a validated incident at the DETECT step
func NewIncident(title string, affectedSystemID uuid.UUID, severity Severity, occurredAt time.Time) (*Incident, error) {
	if title == "" {
		return nil, errors.NewValidationError("MISSING_TITLE", "incident title is required")
	}

	if affectedSystemID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_SYSTEM_ID",
			"affected system ID is required")
	}

	if !severity.IsValid() {
		return nil, errors.NewValidationError("INVALID_SEVERITY",
			"severity must be NEGLIGIBLE, MARGINAL, CRITICAL or CATASTROPHIC")
	}

	now := time.Now().UTC()
	if occurredAt.IsZero() {
		occurredAt = now
	}
	if occurredAt.After(now) {
		return nil, errors.NewValidationError("FUTURE_OCCURRENCE",
			"incident occurrence time cannot be in the future")
	}

	return &Incident{
		ID:               uuid.New(),
		Title:            title,
		AffectedSystemID: affectedSystemID,
		Severity:         severity,
		CurrentStep:      StepDetect,
		OccurredAt:       occurredAt,
		DetectedAt:       now,
		TensorPosition:   values.ZeroTensorPosition(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsResolved reports whether the incident completed verification
func (i *Incident) IsResolved() bool {
	return i.ResolvedAt != nil
}

// IsOpen reports whether the incident is still being worked
func (i *Incident) IsOpen() bool {
	return i.ResolvedAt == nil
}

// DetectionLag is the elapsed time between occurrence and detection
func (i *Incident) DetectionLag() time.Duration {
	return i.DetectedAt.Sub(i.OccurredAt)
}

// ResolutionTime is the elapsed time from detection to resolution, or zero
// while the incident is open
func (i *Incident) ResolutionTime() time.Duration {
	if i.ResolvedAt == nil {
		return 0
	}
	return i.ResolvedAt.Sub(i.DetectedAt)
}

// Snapshot returns an opaque state snapshot for audit before/after fields
func (i *Incident) Snapshot() map[string]interface{} {
	snap := map[string]interface{}{
		"id":           i.ID.String(),
		"title":        i.Title,
		"severity":     string(i.Severity),
		"current_step": string(i.CurrentStep),
		"resolved":     i.IsResolved(),
	}
	if i.ResolvedAt != nil {
		snap["resolved_at"] = i.ResolvedAt.Format(time.RFC3339)
	}
	return snap
}
