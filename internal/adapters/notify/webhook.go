package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/pkg/metrics"
)

const defaultWebhookTimeout = 5 * time.Second

// Webhook POSTs each notification as JSON to a fixed URL. Non-2xx responses
// and transport errors are reported as ErrUndeliverable; there are no retries.
type Webhook struct {
	client *resty.Client
	url    string
}

// WebhookOption configures a Webhook.
type WebhookOption func(*resty.Client)

// WithWebhookTimeout bounds each request.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(c *resty.Client) {
		if d > 0 {
			c.SetTimeout(d)
		}
	}
}

// WithWebhookHeader adds a header to every request, e.g. an auth token.
func WithWebhookHeader(key, value string) WebhookOption {
	return func(c *resty.Client) {
		c.SetHeader(key, value)
	}
}

// NewWebhook creates a webhook dispatcher for url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	client := resty.New().
		SetTimeout(defaultWebhookTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(client)
	}
	return &Webhook{client: client, url: url}
}

func (w *Webhook) Notify(ctx context.Context, n model.Notification) (err error) {
	defer func() {
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.RecordNotification(string(n.Kind), "webhook", outcome)
	}()

	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(NewPayload(n)).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("%w: webhook: %w", ErrUndeliverable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: webhook returned %s", ErrUndeliverable, resp.Status())
	}
	return nil
}
