package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// Payload is the channel-agnostic notification body
type Payload struct {
	AlertID      uuid.UUID              `json:"alert_id"`
	RuleID       uuid.UUID              `json:"rule_id"`
	RuleName     string                 `json:"rule_name"`
	Severity     alert.RuleSeverity     `json:"severity"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	TriggerValue interface{}            `json:"trigger_value"`
	TriggeredAt  time.Time              `json:"triggered_at"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Dispatcher delivers a payload over one channel. Implementations live in
// infrastructure; the engine only needs the contract.
type Dispatcher interface {
	Channel() alert.Channel
	Send(ctx context.Context, payload Payload) error
}

// DefaultNotifyRate caps outbound notifications at one per second with a small
// burst allowance
const (
	DefaultNotifyRate  = rate.Limit(1)
	DefaultNotifyBurst = 5
)

// Notifier fans a fired alert out to its rule's channels behind a shared rate
// limiter. Channel failures are logged and skipped so one dead webhook never
// silences email.
type Notifier struct {
	dispatchers map[alert.Channel]Dispatcher
	limiter     *rate.Limiter
	recorder    AuditRecorder
	logger      *zap.Logger
}

// NewNotifier builds a notifier over the given dispatchers. recorder may be nil.
func NewNotifier(dispatchers []Dispatcher, recorder AuditRecorder, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	byChannel := make(map[alert.Channel]Dispatcher, len(dispatchers))
	for _, d := range dispatchers {
		byChannel[d.Channel()] = d
	}

	return &Notifier{
		dispatchers: byChannel,
		limiter:     rate.NewLimiter(DefaultNotifyRate, DefaultNotifyBurst),
		recorder:    recorder,
		logger:      logger,
	}
}

// WithRate replaces the default dispatch throttle. Non-positive values keep
// the defaults.
func (n *Notifier) WithRate(perSecond float64, burst int) *Notifier {
	limit := DefaultNotifyRate
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = DefaultNotifyBurst
	}
	n.limiter = rate.NewLimiter(limit, burst)
	return n
}

// Notify delivers the alert to every channel its rule names, recording each
// successful delivery on the alert. Returns the channels that accepted the
// payload.
func (n *Notifier) Notify(ctx context.Context, rule *alert.Rule, a *alert.Alert) ([]alert.Channel, error) {
	if rule == nil || a == nil {
		return nil, errors.NewValidationError("MISSING_ALERT", "rule and alert are required")
	}

	payload := Payload{
		AlertID:      a.ID,
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		Severity:     a.Severity,
		Title:        a.Title,
		Message:      a.Message,
		TriggerValue: a.TriggerValue,
		TriggeredAt:  a.TriggeredAt,
		Metadata:     a.Metadata,
	}

	var delivered []alert.Channel

	for _, channel := range rule.NotificationChannels {
		dispatcher, ok := n.dispatchers[channel]
		if !ok {
			n.logger.Warn("no dispatcher for channel",
				zap.String("channel", string(channel)),
				zap.String("rule", rule.Name),
			)
			continue
		}

		if err := n.limiter.Wait(ctx); err != nil {
			return delivered, errors.NewInternalError("notification dispatch interrupted").WithCause(err)
		}

		if err := dispatcher.Send(ctx, payload); err != nil {
			n.logger.Error("notification delivery failed",
				zap.String("channel", string(channel)),
				zap.String("alert_id", a.ID.String()),
				zap.Error(err),
			)
			continue
		}

		a.RecordNotification(channel)
		delivered = append(delivered, channel)
	}

	if len(delivered) > 0 && n.recorder != nil {
		entry, err := audit.NewEntry(audit.EventAlertNotified, "alert", a.ID.String(), audit.ActionNotify)
		if err == nil {
			entry.WithMetadata(map[string]interface{}{
				"channels": delivered,
				"rule_id":  rule.ID.String(),
			})
			_, err = n.recorder.AppendSync(ctx, entry)
		}
		if err != nil {
			n.logger.Error("notification audit write failed",
				zap.String("alert_id", a.ID.String()),
				zap.Error(err),
			)
		}
	}

	return delivered, nil
}

// NotifyFired runs the notifier over a batch of freshly fired alerts and
// persists delivery bookkeeping on each one.
func (e *Engine) NotifyFired(ctx context.Context, fired []*alert.Alert) {
	if e.notifier == nil {
		return
	}

	for _, a := range fired {
		rule, err := e.ruleRepo.GetByID(ctx, a.RuleID)
		if err != nil || rule == nil {
			e.logger.Warn("rule lookup failed during notification",
				zap.String("alert_id", a.ID.String()),
				zap.Error(err),
			)
			continue
		}

		delivered, err := e.notifier.Notify(ctx, rule, a)
		if err != nil {
			e.logger.Error("notification batch interrupted",
				zap.String("alert_id", a.ID.String()),
				zap.Error(err),
			)
			return
		}

		if len(delivered) > 0 {
			if err := e.alertRepo.Save(ctx, a); err != nil {
				e.logger.Warn("could not persist notification record",
					zap.String("alert_id", a.ID.String()),
					zap.Error(err),
				)
			}
		}
	}
}
