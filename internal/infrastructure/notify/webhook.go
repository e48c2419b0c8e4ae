package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aimsgrid/governance-engine/internal/domain/alert"
	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/service/alerting"
)

const webhookTimeout = 10 * time.Second

// WebhookDispatcher POSTs alert payloads as JSON to a configured endpoint.
type WebhookDispatcher struct {
	url    string
	client *http.Client
}

// NewWebhookDispatcher builds a dispatcher for the given endpoint URL.
func NewWebhookDispatcher(url string) *WebhookDispatcher {
	return &WebhookDispatcher{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

func (d *WebhookDispatcher) Channel() alert.Channel {
	return alert.ChannelWebhook
}

func (d *WebhookDispatcher) Send(ctx context.Context, payload alerting.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.NewInternalError("could not encode webhook payload").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return errors.NewInternalError("could not build webhook request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.NewDependencyError("webhook", "delivery failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewDependencyError("webhook",
			fmt.Sprintf("endpoint returned status %d", resp.StatusCode))
	}
	return nil
}
