// Package notify delivers fired alerts to the in-app, sound and webhook channels.
package notify

import (
	"context"
	"net/http"

	"alert-delivery/internal/models"
)

// Deliverer attempts delivery on one channel. Failures are reported in the
// returned outcome; Deliver never returns an error and never panics outward.
type Deliverer interface {
	Channel() models.Channel
	Deliver(ctx context.Context, alert models.FiredAlert, prefs models.NotificationPreferences) models.DeliveryOutcome
}

// Renderer displays toasts.
type Renderer interface {
	Render(ctx context.Context, toast Toast) error
}

// SoundPlayer plays a named tone at a volume in [0, 1].
type SoundPlayer interface {
	Play(ctx context.Context, tone string, volume float64) error
}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PreferenceSource supplies the current preferences snapshot.
type PreferenceSource interface {
	Preferences() models.NotificationPreferences
}

// AuditSink receives every dispatch result after aggregation.
type AuditSink interface {
	RecordDelivery(ctx context.Context, alert models.FiredAlert, result models.DeliveryResult) error
}

// StaticPreferences is a PreferenceSource that never changes.
type StaticPreferences models.NotificationPreferences

// Preferences returns p.
func (p StaticPreferences) Preferences() models.NotificationPreferences {
	return models.NotificationPreferences(p)
}
