package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/service/alerting"
)

// InAppDispatcher surfaces alerts through the service log until a real
// in-app delivery backend exists. It never fails.
type InAppDispatcher struct {
	logger *zap.Logger
}

func NewInAppDispatcher(logger *zap.Logger) *InAppDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InAppDispatcher{logger: logger}
}

func (d *InAppDispatcher) Channel() alert.Channel {
	return alert.ChannelInApp
}

func (d *InAppDispatcher) Send(_ context.Context, payload alerting.Payload) error {
	d.logger.Info("alert notification",
		zap.String("alert_id", payload.AlertID.String()),
		zap.String("rule", payload.RuleName),
		zap.String("severity", string(payload.Severity)),
		zap.String("title", payload.Title),
		zap.String("message", payload.Message),
	)
	return nil
}
