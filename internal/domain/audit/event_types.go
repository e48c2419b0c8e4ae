package audit

// EventType identifies one kind of governance-relevant event. The vocabulary
// is closed: dispatch tables and validation are built from AllEventTypes, so
// adding an event kind is a compile-time-visible change here, not a runtime
// string convention.
type EventType string

const (
	// System lifecycle events
	EventSystemRegistered EventType = "system.registered"
	EventSystemUpdated    EventType = "system.updated"
	EventSystemRetired    EventType = "system.retired"

	// Compliance events
	EventComplianceAssessed    EventType = "compliance.assessed"
	EventComplianceBaselineSet EventType = "compliance.baseline_set"

	// Incident lifecycle events
	EventIncidentCreated  EventType = "incident.created"
	EventIncidentAdvanced EventType = "incident.workflow_advanced"
	EventIncidentResolved EventType = "incident.resolved"
	EventIncidentReopened EventType = "incident.reopened"

	// Human oversight events
	EventOversightActionRecorded EventType = "oversight.action_recorded"
	EventOversightOverride       EventType = "oversight.override_performed"

	// Alert pipeline events
	EventAlertTriggered     EventType = "alert.triggered"
	EventAlertAcknowledged  EventType = "alert.acknowledged"
	EventAlertResolved      EventType = "alert.resolved"
	EventAlertFalsePositive EventType = "alert.false_positive"
	EventAlertNotified      EventType = "alert.notification_sent"
)

// AllEventTypes is the exhaustive list of valid event kinds
var AllEventTypes = []EventType{
	EventSystemRegistered,
	EventSystemUpdated,
	EventSystemRetired,
	EventComplianceAssessed,
	EventComplianceBaselineSet,
	EventIncidentCreated,
	EventIncidentAdvanced,
	EventIncidentResolved,
	EventIncidentReopened,
	EventOversightActionRecorded,
	EventOversightOverride,
	EventAlertTriggered,
	EventAlertAcknowledged,
	EventAlertResolved,
	EventAlertFalsePositive,
	EventAlertNotified,
}

// IsValid reports whether the event type belongs to the closed vocabulary
func (t EventType) IsValid() bool {
	for _, known := range AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Category derives the event category from the dotted-namespace prefix
func (t EventType) Category() string {
	for i := 0; i < len(t); i++ {
		if t[i] == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// Action describes the kind of state change an entry records
type Action string

const (
	ActionCreate   Action = "CREATE"
	ActionUpdate   Action = "UPDATE"
	ActionDelete   Action = "DELETE"
	ActionAssess   Action = "ASSESS"
	ActionResolve  Action = "RESOLVE"
	ActionAdvance  Action = "ADVANCE"
	ActionOverride Action = "OVERRIDE"
	ActionAlert    Action = "ALERT"
	ActionNotify   Action = "NOTIFY"
)

// IsValid reports whether the action is one of the known verbs
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionAssess, ActionResolve,
		ActionAdvance, ActionOverride, ActionAlert, ActionNotify:
		return true
	default:
		return false
	}
}

// ActorType classifies who performed an action
type ActorType string

const (
	ActorHuman     ActorType = "HUMAN"
	ActorSystem    ActorType = "SYSTEM"
	ActorAutomated ActorType = "AUTOMATED"
	ActorAPI       ActorType = "API"
)

// IsValid reports whether the actor type is known
func (a ActorType) IsValid() bool {
	switch a {
	case ActorHuman, ActorSystem, ActorAutomated, ActorAPI:
		return true
	default:
		return false
	}
}
