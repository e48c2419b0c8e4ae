package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EntryRepository defines the persistence contract for audit entries. The
// store does not dictate engine or schema, only durable writes and basic
// equality/range/membership filters with ordering.
type EntryRepository interface {
	// Store persists a single entry
	Store(ctx context.Context, entry *Entry) error

	// StoreBatch persists multiple entries in one write; all succeed or all fail
	StoreBatch(ctx context.Context, entries []*Entry) error

	// GetByID retrieves an entry by its unique identifier
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// GetLatestSequenceNumber returns the highest sequence number persisted,
	// or zero when the store is empty
	GetLatestSequenceNumber(ctx context.Context) (int64, error)

	// List retrieves entries matching the filter, ordered newest-first
	List(ctx context.Context, filter Filter) ([]*Entry, error)

	// ListBySequence retrieves entries with sequence numbers in [from, to],
	// ordered by sequence number ascending
	ListBySequence(ctx context.Context, from, to int64) ([]*Entry, error)

	// Count returns the number of entries matching the filter
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Filter defines the query surface over the audit trail. Zero values mean
// "no constraint".
type Filter struct {
	EventTypes []EventType `json:"event_types,omitempty"`
	Categories []string    `json:"categories,omitempty"`

	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`

	ActorIDs   []string    `json:"actor_ids,omitempty"`
	ActorTypes []ActorType `json:"actor_types,omitempty"`

	Action Action `json:"action,omitempty"`

	Since *time.Time `json:"since,omitempty"`
	Until *time.Time `json:"until,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Matches reports whether an entry satisfies every constraint in the filter.
// Limit/Offset are pagination concerns and are ignored here.
func (f Filter) Matches(e *Entry) bool {
	if len(f.EventTypes) > 0 && !containsEventType(f.EventTypes, e.EventType) {
		return false
	}
	if len(f.Categories) > 0 && !containsString(f.Categories, e.Category) {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if len(f.ActorIDs) > 0 && !containsString(f.ActorIDs, e.ActorID) {
		return false
	}
	if len(f.ActorTypes) > 0 && !containsActorType(f.ActorTypes, e.ActorType) {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	return true
}

func containsEventType(haystack []EventType, needle EventType) bool {
	for _, t := range haystack {
		if t == needle {
			return true
		}
	}
	return false
}

func containsActorType(haystack []ActorType, needle ActorType) bool {
	for _, t := range haystack {
		if t == needle {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// SequenceGap describes a missing run of sequence numbers
type SequenceGap struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// IntegrityReport is the result of a sequence scan. Gaps are reported, never
// thrown: a gap is an investigation trigger, not an error condition.
type IntegrityReport struct {
	EntriesChecked int64         `json:"entries_checked"`
	FirstSequence  int64         `json:"first_sequence"`
	LastSequence   int64         `json:"last_sequence"`
	Gaps           []SequenceGap `json:"gaps"`
	CheckedAt      time.Time     `json:"checked_at"`
}

// OK reports whether the scanned range was contiguous
func (r *IntegrityReport) OK() bool {
	return len(r.Gaps) == 0
}

// EntitySummary aggregates the trail of one entity
type EntitySummary struct {
	EntityType   string              `json:"entity_type"`
	EntityID     string              `json:"entity_id"`
	TotalEntries int64               `json:"total_entries"`
	ByAction     map[Action]int64    `json:"by_action"`
	ByActor      map[string]int64    `json:"by_actor"`
	ByEventType  map[EventType]int64 `json:"by_event_type"`
	FirstSeen    time.Time           `json:"first_seen"`
	LastSeen     time.Time           `json:"last_seen"`
}
