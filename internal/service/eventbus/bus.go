package eventbus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// Event is the ephemeral payload passed to Emit. It is consumed synchronously
// within the emit call and discarded after dispatch.
type Event struct {
	Type       audit.EventType
	EntityType string
	EntityID   string
	Action     audit.Action

	ActorID   string
	ActorType audit.ActorType

	Before   map[string]interface{}
	After    map[string]interface{}
	Metadata map[string]interface{}

	SessionID string
	RequestID string
}

// Handler processes one dispatched event. Handler failures are isolated:
// an error (or panic) in one handler never blocks siblings or the emit call.
type Handler func(ctx context.Context, event Event) error

// AuditSink is the slice of the audit log the bus writes through
type AuditSink interface {
	Append(ctx context.Context, entry *audit.Entry) error
	AppendSync(ctx context.Context, entry *audit.Entry) (*audit.Entry, error)
}

// Publisher forwards entries to an external pub/sub channel. Publish failures
// never fail an emit: the audit write has already happened.
type Publisher interface {
	Publish(ctx context.Context, entry *audit.Entry) error
}

// Subscription identifies one registered handler for deregistration
type Subscription struct {
	eventType audit.EventType
	id        uint64
}

type registration struct {
	id      uint64
	handler Handler
	once    bool
}

// Bus is the in-process publish/subscribe dispatcher. Every emit writes an
// audit entry first, then notifies the external publisher, then fans out to
// registered handlers sequentially.
type Bus struct {
	auditLog  AuditSink
	publisher Publisher
	logger    *zap.Logger

	mu       sync.RWMutex
	nextID   uint64
	handlers map[audit.EventType][]*registration
}

// New creates a bus over the given audit sink. publisher may be nil.
func New(auditLog AuditSink, publisher Publisher, logger *zap.Logger) (*Bus, error) {
	if auditLog == nil {
		return nil, errors.NewValidationError("MISSING_AUDIT_LOG", "audit sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	handlers := make(map[audit.EventType][]*registration, len(audit.AllEventTypes))
	for _, t := range audit.AllEventTypes {
		handlers[t] = nil
	}

	return &Bus{
		auditLog:  auditLog,
		publisher: publisher,
		logger:    logger,
		handlers:  handlers,
	}, nil
}

// On registers a handler for every future emit of the event type
func (b *Bus) On(eventType audit.EventType, handler Handler) (Subscription, error) {
	return b.register(eventType, handler, false)
}

// Once registers a handler that auto-deregisters after its first invocation
func (b *Bus) Once(eventType audit.EventType, handler Handler) (Subscription, error) {
	return b.register(eventType, handler, true)
}

func (b *Bus) register(eventType audit.EventType, handler Handler, once bool) (Subscription, error) {
	if !eventType.IsValid() {
		return Subscription{}, errors.NewValidationError("INVALID_EVENT_TYPE",
			"cannot subscribe to an unknown event type")
	}
	if handler == nil {
		return Subscription{}, errors.NewValidationError("MISSING_HANDLER", "handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	reg := &registration{id: b.nextID, handler: handler, once: once}
	b.handlers[eventType] = append(b.handlers[eventType], reg)

	return Subscription{eventType: eventType, id: reg.id}, nil
}

// Off deregisters a previously registered handler
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.eventType, sub.id)
}

func (b *Bus) removeLocked(eventType audit.EventType, id uint64) {
	regs := b.handlers[eventType]
	for i, reg := range regs {
		if reg.id == id {
			b.handlers[eventType] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Emit records the event on the audit trail via the queued write path, then
// dispatches to handlers. Returns an error only when the event is malformed
// or the audit enqueue itself fails.
func (b *Bus) Emit(ctx context.Context, event Event) error {
	entry, err := b.buildEntry(event)
	if err != nil {
		return err
	}

	if err := b.auditLog.Append(ctx, entry); err != nil {
		return err
	}

	b.publish(ctx, entry)
	b.dispatch(ctx, event)
	return nil
}

// EmitCritical is Emit with a synchronous audit write. Use for high-value
// events where losing an entry between enqueue and flush is unacceptable.
func (b *Bus) EmitCritical(ctx context.Context, event Event) error {
	entry, err := b.buildEntry(event)
	if err != nil {
		return err
	}

	persisted, err := b.auditLog.AppendSync(ctx, entry)
	if err != nil {
		return err
	}

	b.publish(ctx, persisted)
	b.dispatch(ctx, event)
	return nil
}

func (b *Bus) buildEntry(event Event) (*audit.Entry, error) {
	entry, err := audit.NewEntry(event.Type, event.EntityType, event.EntityID, event.Action)
	if err != nil {
		return nil, err
	}

	entry.WithActor(event.ActorID, event.ActorType).
		WithSnapshots(event.Before, event.After).
		WithMetadata(event.Metadata).
		WithCorrelation(event.SessionID, event.RequestID)

	return entry, nil
}

func (b *Bus) publish(ctx context.Context, entry *audit.Entry) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.Publish(ctx, entry); err != nil {
		b.logger.Warn("event publish failed",
			zap.String("event_type", string(entry.EventType)),
			zap.Error(err),
		)
	}
}

// dispatch invokes handlers sequentially, isolating each one's failure
func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.mu.Lock()
	regs := b.handlers[event.Type]
	active := make([]*registration, len(regs))
	copy(active, regs)
	for _, reg := range regs {
		if reg.once {
			b.removeLocked(event.Type, reg.id)
		}
	}
	b.mu.Unlock()

	for _, reg := range active {
		b.invoke(ctx, reg, event)
	}
}

func (b *Bus) invoke(ctx context.Context, reg *registration, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", string(event.Type)),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if err := reg.handler(ctx, event); err != nil {
		b.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

// HandlerCount reports the registered handlers for one event type
func (b *Bus) HandlerCount(eventType audit.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
