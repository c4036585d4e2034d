package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/models"
	"alert-delivery/internal/security"
)

// DefaultWebhookTimeout bounds a single webhook request.
const DefaultWebhookTimeout = 10 * time.Second

// WebhookDeliverer posts alerts to a chat webhook.
type WebhookDeliverer struct {
	client    HTTPDoer
	userAgent string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewWebhookDeliverer creates a webhook deliverer. A nil client gets an
// *http.Client with DefaultWebhookTimeout.
func NewWebhookDeliverer(client HTTPDoer, userAgent string, logger zerolog.Logger) *WebhookDeliverer {
	if client == nil {
		client = &http.Client{Timeout: DefaultWebhookTimeout}
	}
	if userAgent == "" {
		userAgent = "alertd/1.0"
	}
	return &WebhookDeliverer{
		client:    client,
		userAgent: userAgent,
		logger:    logger.With().Str("channel", string(models.ChannelWebhook)).Logger(),
		now:       time.Now,
	}
}

// Channel returns models.ChannelWebhook.
func (d *WebhookDeliverer) Channel() models.Channel {
	return models.ChannelWebhook
}

// Deliver posts the formatted payload once. No retry.
func (d *WebhookDeliverer) Deliver(ctx context.Context, alert models.FiredAlert, prefs models.NotificationPreferences) models.DeliveryOutcome {
	cfg := prefs.Webhook
	if cfg.URL == "" {
		return models.Failed(models.ChannelWebhook, d.now(), apperrors.ErrWebhookURLMissing.Error())
	}

	if err := d.send(ctx, cfg.URL, FormatForWebhook(alert, cfg)); err != nil {
		// Transport errors quote the request URL, which holds the webhook secret.
		reason := security.MaskURLs(err.Error())
		d.logger.Warn().Str("error", reason).Str("symbol", alert.Symbol).Msg("Webhook delivery failed")
		return models.Failed(models.ChannelWebhook, d.now(), reason)
	}

	d.logger.Debug().Str("symbol", alert.Symbol).Msg("Webhook delivered")
	return models.Delivered(models.ChannelWebhook, d.now())
}

func (d *WebhookDeliverer) send(ctx context.Context, url string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
