package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// Status is the lifecycle state of a fired alert. Transitions run one way
// from ACTIVE; an acknowledged alert may still resolve or prove false, but
// nothing ever returns to ACTIVE.
type Status string

const (
	StatusActive        Status = "ACTIVE"
	StatusAcknowledged  Status = "ACKNOWLEDGED"
	StatusResolved      Status = "RESOLVED"
	StatusFalsePositive Status = "FALSE_POSITIVE"
)

// IsValid reports whether the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusResolved, StatusFalsePositive:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the alert can no longer transition
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusFalsePositive
}

// Channel is a notification delivery target
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
	ChannelChat    Channel = "chat"
	ChannelInApp   Channel = "in_app"
)

// IsValid reports whether the channel is known
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelWebhook, ChannelChat, ChannelInApp:
		return true
	default:
		return false
	}
}

// Alert is one firing of a rule
type Alert struct {
	ID       uuid.UUID    `json:"id"`
	RuleID   uuid.UUID    `json:"rule_id"`
	Severity RuleSeverity `json:"severity"`
	Status   Status       `json:"status"`

	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	TriggerValue interface{}            `json:"trigger_value"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	TriggeredAt time.Time `json:"triggered_at"`

	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`

	NotificationsSent []Channel `json:"notifications_sent,omitempty"`
}

// NewAlert creates an ACTIVE alert for a fired rule, copying severity at fire time
func NewAlert(rule *Rule, title, message string, triggerValue interface{}) (*Alert, error) {
	if rule == nil {
		return nil, errors.NewValidationError("MISSING_RULE", "alert requires its owning rule")
	}

	if title == "" {
		return nil, errors.NewValidationError("MISSING_TITLE", "alert title is required")
	}

	return &Alert{
		ID:           uuid.New(),
		RuleID:       rule.ID,
		Severity:     rule.Severity,
		Status:       StatusActive,
		Title:        title,
		Message:      message,
		TriggerValue: triggerValue,
		TriggeredAt:  time.Now().UTC(),
	}, nil
}

// Acknowledge transitions ACTIVE -> ACKNOWLEDGED
func (a *Alert) Acknowledge(actorID, notes string) error {
	if actorID == "" {
		return errors.NewValidationError("MISSING_ACTOR_ID", "acknowledging actor is required")
	}

	if a.Status != StatusActive {
		return errors.NewPreconditionError("INVALID_ALERT_TRANSITION",
			"only an active alert can be acknowledged")
	}

	now := time.Now().UTC()
	a.Status = StatusAcknowledged
	a.AcknowledgedBy = actorID
	a.AcknowledgedAt = &now
	if notes != "" {
		a.Notes = notes
	}
	return nil
}

// Resolve transitions ACTIVE or ACKNOWLEDGED -> RESOLVED
func (a *Alert) Resolve(actorID, notes string) error {
	if actorID == "" {
		return errors.NewValidationError("MISSING_ACTOR_ID", "resolving actor is required")
	}

	if a.Status.IsTerminal() {
		return errors.NewPreconditionError("INVALID_ALERT_TRANSITION",
			"alert is already in a terminal state")
	}

	now := time.Now().UTC()
	a.Status = StatusResolved
	a.ResolvedBy = actorID
	a.ResolvedAt = &now
	if notes != "" {
		a.Notes = notes
	}
	return nil
}

// MarkFalsePositive transitions ACTIVE or ACKNOWLEDGED -> FALSE_POSITIVE
func (a *Alert) MarkFalsePositive(actorID, notes string) error {
	if actorID == "" {
		return errors.NewValidationError("MISSING_ACTOR_ID", "classifying actor is required")
	}

	if a.Status.IsTerminal() {
		return errors.NewPreconditionError("INVALID_ALERT_TRANSITION",
			"alert is already in a terminal state")
	}

	now := time.Now().UTC()
	a.Status = StatusFalsePositive
	a.ResolvedBy = actorID
	a.ResolvedAt = &now
	if notes != "" {
		a.Notes = notes
	}
	return nil
}

// RecordNotification appends a channel that accepted delivery
func (a *Alert) RecordNotification(channel Channel) {
	for _, sent := range a.NotificationsSent {
		if sent == channel {
			return
		}
	}
	a.NotificationsSent = append(a.NotificationsSent, channel)
}

// Snapshot returns an opaque state snapshot for audit before/after fields
func (a *Alert) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"id":       a.ID.String(),
		"rule_id":  a.RuleID.String(),
		"status":   string(a.Status),
		"severity": string(a.Severity),
	}
}
