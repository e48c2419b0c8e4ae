package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// Entry is one immutable record of a governance-relevant action. Sequence
// number and timestamp are assigned by the store at write time; once written
// an entry is never mutated or deleted.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	SequenceNum int64     `json:"sequence_num"`
	Timestamp   time.Time `json:"timestamp"`

	EventType EventType `json:"event_type"`
	Category  string    `json:"category"`

	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Action     Action `json:"action"`

	ActorID   string    `json:"actor_id,omitempty"`
	ActorType ActorType `json:"actor_type"`

	// Before and After hold opaque state snapshots around the action.
	// Deliberately untyped for forward compatibility; the event type tags
	// which shape to expect.
	Before   map[string]interface{} `json:"before,omitempty"`
	After    map[string]interface{} `json:"after,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	SessionID string `json:"session_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewEntry creates a validated, not-yet-persisted audit entry. Sequence number
// stays zero until the store assigns one.
func NewEntry(eventType EventType, entityType, entityID string, action Action) (*Entry, error) {
	if !eventType.IsValid() {
		return nil, errors.NewValidationError("INVALID_EVENT_TYPE",
			"event type must belong to the governance event vocabulary")
	}

	if entityType == "" {
		return nil, errors.NewValidationError("MISSING_ENTITY_TYPE",
			"entity type is required")
	}

	if entityID == "" {
		return nil, errors.NewValidationError("MISSING_ENTITY_ID",
			"entity ID is required")
	}

	if !action.IsValid() {
		return nil, errors.NewValidationError("INVALID_ACTION",
			"action must be a known audit action")
	}

	return &Entry{
		ID:         uuid.New(),
		EventType:  eventType,
		Category:   eventType.Category(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorType:  ActorSystem,
	}, nil
}

// WithActor sets actor identity; an empty actorID keeps the SYSTEM default
func (e *Entry) WithActor(actorID string, actorType ActorType) *Entry {
	e.ActorID = actorID
	if actorType.IsValid() {
		e.ActorType = actorType
	}
	return e
}

// WithSnapshots attaches before/after state snapshots
func (e *Entry) WithSnapshots(before, after map[string]interface{}) *Entry {
	e.Before = before
	e.After = after
	return e
}

// WithMetadata attaches free-form metadata
func (e *Entry) WithMetadata(metadata map[string]interface{}) *Entry {
	e.Metadata = metadata
	return e
}

// WithCorrelation attaches request correlation identifiers
func (e *Entry) WithCorrelation(sessionID, requestID string) *Entry {
	e.SessionID = sessionID
	e.RequestID = requestID
	return e
}

// Validate checks the entry is well-formed before persistence
func (e *Entry) Validate() error {
	if e.ID == uuid.Nil {
		return errors.NewValidationError("MISSING_ID", "entry ID is required")
	}

	if !e.EventType.IsValid() {
		return errors.NewValidationError("INVALID_EVENT_TYPE",
			"event type must belong to the governance event vocabulary")
	}

	if e.Category != e.EventType.Category() {
		return errors.NewValidationError("CATEGORY_MISMATCH",
			"category must be derived from the event type prefix")
	}

	if e.EntityType == "" {
		return errors.NewValidationError("MISSING_ENTITY_TYPE", "entity type is required")
	}

	if e.EntityID == "" {
		return errors.NewValidationError("MISSING_ENTITY_ID", "entity ID is required")
	}

	if !e.Action.IsValid() {
		return errors.NewValidationError("INVALID_ACTION", "action must be a known audit action")
	}

	if !e.ActorType.IsValid() {
		return errors.NewValidationError("INVALID_ACTOR_TYPE", "actor type must be known")
	}

	return nil
}
