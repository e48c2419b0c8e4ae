package alerting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/service/metrics"
	"github.com/aimsgrid/governance-engine/internal/testutil/fixtures"
)

// fakeDispatcher records payloads for one channel and can be told to fail
type fakeDispatcher struct {
	channel alert.Channel
	fail    error
	sent    []Payload
}

func (d *fakeDispatcher) Channel() alert.Channel { return d.channel }

func (d *fakeDispatcher) Send(ctx context.Context, payload Payload) error {
	if d.fail != nil {
		return d.fail
	}
	d.sent = append(d.sent, payload)
	return nil
}

func TestNotifier_Notify_DeliversToConfiguredChannels(t *testing.T) {
	h := newEngineHarness(t)
	webhook := &fakeDispatcher{channel: alert.ChannelWebhook}
	inApp := &fakeDispatcher{channel: alert.ChannelInApp}
	notifier := NewNotifier([]Dispatcher{webhook, inApp}, h.log, zap.NewNop())

	rule := fixtures.NewRuleBuilder().
		WithChannels(alert.ChannelWebhook, alert.ChannelInApp).
		Build(t)
	a, err := alert.NewAlert(rule, "warning: "+rule.Name, "open incidents crossed threshold", 6.0)
	require.NoError(t, err)

	delivered, err := notifier.Notify(context.Background(), rule, a)
	require.NoError(t, err)

	assert.ElementsMatch(t, []alert.Channel{alert.ChannelWebhook, alert.ChannelInApp}, delivered)
	assert.ElementsMatch(t, []alert.Channel{alert.ChannelWebhook, alert.ChannelInApp}, a.NotificationsSent)

	require.Len(t, webhook.sent, 1)
	payload := webhook.sent[0]
	assert.Equal(t, a.ID, payload.AlertID)
	assert.Equal(t, rule.ID, payload.RuleID)
	assert.Equal(t, rule.Name, payload.RuleName)
	assert.Equal(t, a.Title, payload.Title)
	assert.Equal(t, 6.0, payload.TriggerValue)

	var notified []*audit.Entry
	for _, entry := range h.auditRepo.All() {
		if entry.EventType == audit.EventAlertNotified {
			notified = append(notified, entry)
		}
	}
	require.Len(t, notified, 1)
	assert.Equal(t, audit.ActionNotify, notified[0].Action)
	assert.Equal(t, rule.ID.String(), notified[0].Metadata["rule_id"])
}

func TestNotifier_Notify_ChannelFailureIsolation(t *testing.T) {
	h := newEngineHarness(t)
	webhook := &fakeDispatcher{channel: alert.ChannelWebhook, fail: assert.AnError}
	inApp := &fakeDispatcher{channel: alert.ChannelInApp}
	notifier := NewNotifier([]Dispatcher{webhook, inApp}, h.log, zap.NewNop())

	rule := fixtures.NewRuleBuilder().
		WithChannels(alert.ChannelWebhook, alert.ChannelInApp).
		Build(t)
	a, err := alert.NewAlert(rule, "warning: "+rule.Name, "open incidents crossed threshold", 6.0)
	require.NoError(t, err)

	delivered, err := notifier.Notify(context.Background(), rule, a)
	require.NoError(t, err)

	assert.Equal(t, []alert.Channel{alert.ChannelInApp}, delivered)
	assert.Equal(t, []alert.Channel{alert.ChannelInApp}, a.NotificationsSent)
	require.Len(t, inApp.sent, 1)
}

func TestNotifier_Notify_UnconfiguredChannelSkipped(t *testing.T) {
	h := newEngineHarness(t)
	notifier := NewNotifier([]Dispatcher{&fakeDispatcher{channel: alert.ChannelInApp}}, h.log, zap.NewNop())

	rule := fixtures.NewRuleBuilder().WithChannels(alert.ChannelChat).Build(t)
	a, err := alert.NewAlert(rule, "warning: "+rule.Name, "open incidents crossed threshold", 6.0)
	require.NoError(t, err)

	delivered, err := notifier.Notify(context.Background(), rule, a)
	require.NoError(t, err)

	assert.Empty(t, delivered)
	assert.Empty(t, a.NotificationsSent)
	assert.Equal(t, 0, h.auditRepo.Len())
}

func TestNotifier_Notify_RejectsMissingInput(t *testing.T) {
	notifier := NewNotifier(nil, nil, zap.NewNop())

	_, err := notifier.Notify(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestEngine_NotifyFired(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	inApp := &fakeDispatcher{channel: alert.ChannelInApp}
	h.engine.notifier = NewNotifier([]Dispatcher{inApp}, h.log, zap.NewNop()).WithRate(100, 100)

	h.snapshots.snap = &metrics.Snapshot{Incidents: metrics.IncidentStats{Open: 10}}
	h.saveRule(t, fixtures.NewRuleBuilder().WithChannels(alert.ChannelInApp).Build(t))

	fired, err := h.engine.EvaluateAll(ctx)
	require.NoError(t, err)
	require.Len(t, fired, 1)

	h.engine.NotifyFired(ctx, fired)

	require.Len(t, inApp.sent, 1)

	stored, err := h.alertRepo.GetByID(ctx, fired[0].ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []alert.Channel{alert.ChannelInApp}, stored.NotificationsSent)
}

func TestEngine_NotifyFired_WithoutNotifier(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	h.snapshots.snap = &metrics.Snapshot{Incidents: metrics.IncidentStats{Open: 10}}
	h.saveRule(t, fixtures.NewRuleBuilder().WithChannels(alert.ChannelInApp).Build(t))

	fired, err := h.engine.EvaluateAll(ctx)
	require.NoError(t, err)
	require.Len(t, fired, 1)

	// no notifier configured, must be a no-op
	h.engine.NotifyFired(ctx, fired)
}
