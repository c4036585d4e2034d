package models

import (
	"strings"

	"github.com/guregu/null/v5"

	apperrors "alert-delivery/internal/errors"
)

// ToastPosition is the screen corner or edge used by the in-app renderer.
type ToastPosition string

const (
	PositionTopLeft      ToastPosition = "top-left"
	PositionTopCenter    ToastPosition = "top-center"
	PositionTopRight     ToastPosition = "top-right"
	PositionBottomLeft   ToastPosition = "bottom-left"
	PositionBottomCenter ToastPosition = "bottom-center"
	PositionBottomRight  ToastPosition = "bottom-right"
)

// Valid reports whether p is a supported position.
func (p ToastPosition) Valid() bool {
	switch p {
	case PositionTopLeft, PositionTopCenter, PositionTopRight,
		PositionBottomLeft, PositionBottomCenter, PositionBottomRight:
		return true
	}
	return false
}

// Top reports whether toasts stack from the top of the screen.
func (p ToastPosition) Top() bool {
	return strings.HasPrefix(string(p), "top-")
}

// Default preference values.
const (
	DefaultPosition    = PositionTopRight
	DefaultAutoCloseMS = 5000
	DefaultTone        = "default"
	DefaultVolume      = 0.7
)

// NotificationPreferences holds per-channel enablement and configuration.
type NotificationPreferences struct {
	InApp   InAppPreferences   `json:"inApp"`
	Sound   SoundPreferences   `json:"sound"`
	Webhook WebhookPreferences `json:"webhook"`
}

// InAppPreferences configures the visual toast channel.
type InAppPreferences struct {
	Enabled     bool          `json:"enabled"`
	Position    ToastPosition `json:"position"`
	AutoCloseMS int64         `json:"autoCloseMs"` // 0 keeps the toast until dismissed
	PlaySound   bool          `json:"sound"`
}

// SoundPreferences configures the audible tone channel.
type SoundPreferences struct {
	Enabled bool    `json:"enabled"`
	Tone    string  `json:"tone"`
	Volume  float64 `json:"volume"`
}

// WebhookPreferences configures the chat webhook channel.
type WebhookPreferences struct {
	Enabled  bool        `json:"enabled"`
	URL      string      `json:"url"`
	Channel  null.String `json:"channel"`
	Username null.String `json:"username"`
}

// DefaultPreferences returns the built-in preferences used when nothing is persisted.
func DefaultPreferences() NotificationPreferences {
	return NotificationPreferences{
		InApp: InAppPreferences{
			Enabled:     true,
			Position:    DefaultPosition,
			AutoCloseMS: DefaultAutoCloseMS,
			PlaySound:   true,
		},
		Sound: SoundPreferences{
			Enabled: true,
			Tone:    DefaultTone,
			Volume:  DefaultVolume,
		},
	}
}

// Enabled reports whether a channel is switched on.
func (p NotificationPreferences) Enabled(ch Channel) bool {
	switch ch {
	case ChannelInApp:
		return p.InApp.Enabled
	case ChannelSound:
		return p.Sound.Enabled
	case ChannelWebhook:
		return p.Webhook.Enabled
	}
	return false
}

// EnabledChannels returns the enabled channels in dispatch order.
// The webhook URL is not checked here; the webhook deliverer reports a missing URL.
func (p NotificationPreferences) EnabledChannels() []Channel {
	var out []Channel
	for _, ch := range Channels() {
		if p.Enabled(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// WithEnabled returns a copy with one channel's flag set.
func (p NotificationPreferences) WithEnabled(ch Channel, enabled bool) NotificationPreferences {
	switch ch {
	case ChannelInApp:
		p.InApp.Enabled = enabled
	case ChannelSound:
		p.Sound.Enabled = enabled
	case ChannelWebhook:
		p.Webhook.Enabled = enabled
	}
	return p
}

// Normalize repairs values loaded from storage: volume is clamped to [0, 1],
// unknown positions fall back to the default and negative durations become 0.
func (p NotificationPreferences) Normalize() NotificationPreferences {
	p.Sound.Volume = ClampVolume(p.Sound.Volume)
	if !p.InApp.Position.Valid() {
		p.InApp.Position = DefaultPosition
	}
	if p.InApp.AutoCloseMS < 0 {
		p.InApp.AutoCloseMS = 0
	}
	if strings.TrimSpace(p.Sound.Tone) == "" {
		p.Sound.Tone = DefaultTone
	}
	p.Webhook.URL = strings.TrimSpace(p.Webhook.URL)
	return p
}

// ClampVolume limits v to [0, 1].
func ClampVolume(v float64) float64 {
	if v != v || v < 0 { // NaN or negative
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PreferencesUpdate is a partial update. Nil channels and invalid (unset) fields are left alone.
type PreferencesUpdate struct {
	InApp   *InAppUpdate   `json:"inApp,omitempty"`
	Sound   *SoundUpdate   `json:"sound,omitempty"`
	Webhook *WebhookUpdate `json:"webhook,omitempty"`
}

// InAppUpdate carries changed in-app fields.
type InAppUpdate struct {
	Enabled     null.Bool   `json:"enabled"`
	Position    null.String `json:"position"`
	AutoCloseMS null.Int    `json:"autoCloseMs"`
	PlaySound   null.Bool   `json:"sound"`
}

// SoundUpdate carries changed sound fields.
type SoundUpdate struct {
	Enabled null.Bool   `json:"enabled"`
	Tone    null.String `json:"tone"`
	Volume  null.Float  `json:"volume"`
}

// WebhookUpdate carries changed webhook fields. An empty Channel or Username clears it.
type WebhookUpdate struct {
	Enabled  null.Bool   `json:"enabled"`
	URL      null.String `json:"url"`
	Channel  null.String `json:"channel"`
	Username null.String `json:"username"`
}

// Empty reports whether the update changes nothing.
func (u PreferencesUpdate) Empty() bool {
	return u.InApp == nil && u.Sound == nil && u.Webhook == nil
}

// Validate rejects out-of-range values instead of silently clamping them.
func (u PreferencesUpdate) Validate() error {
	if in := u.InApp; in != nil {
		if in.Position.Valid && !ToastPosition(in.Position.String).Valid() {
			return apperrors.NewValidationError("inApp.position", in.Position.String, "unsupported position")
		}
		if in.AutoCloseMS.Valid && in.AutoCloseMS.Int64 < 0 {
			return apperrors.NewValidationError("inApp.autoCloseMs", in.AutoCloseMS.Int64, "must not be negative")
		}
	}
	if s := u.Sound; s != nil {
		if s.Volume.Valid && (s.Volume.Float64 != s.Volume.Float64 || s.Volume.Float64 < 0 || s.Volume.Float64 > 1) {
			return apperrors.NewValidationError("sound.volume", s.Volume.Float64, "must be between 0.0 and 1.0")
		}
		if s.Tone.Valid && strings.TrimSpace(s.Tone.String) == "" {
			return apperrors.NewValidationError("sound.tone", s.Tone.String, "must not be empty")
		}
	}
	return nil
}

// Merge applies the update channel by channel and returns the result.
// Channels absent from the update keep their current configuration.
func (p NotificationPreferences) Merge(u PreferencesUpdate) NotificationPreferences {
	if in := u.InApp; in != nil {
		if in.Enabled.Valid {
			p.InApp.Enabled = in.Enabled.Bool
		}
		if in.Position.Valid {
			p.InApp.Position = ToastPosition(in.Position.String)
		}
		if in.AutoCloseMS.Valid {
			p.InApp.AutoCloseMS = in.AutoCloseMS.Int64
		}
		if in.PlaySound.Valid {
			p.InApp.PlaySound = in.PlaySound.Bool
		}
	}
	if s := u.Sound; s != nil {
		if s.Enabled.Valid {
			p.Sound.Enabled = s.Enabled.Bool
		}
		if s.Tone.Valid {
			p.Sound.Tone = strings.TrimSpace(s.Tone.String)
		}
		if s.Volume.Valid {
			p.Sound.Volume = s.Volume.Float64
		}
	}
	if w := u.Webhook; w != nil {
		if w.Enabled.Valid {
			p.Webhook.Enabled = w.Enabled.Bool
		}
		if w.URL.Valid {
			p.Webhook.URL = strings.TrimSpace(w.URL.String)
		}
		if w.Channel.Valid {
			p.Webhook.Channel = optionalString(w.Channel.String)
		}
		if w.Username.Valid {
			p.Webhook.Username = optionalString(w.Username.String)
		}
	}
	return p
}

func optionalString(s string) null.String {
	s = strings.TrimSpace(s)
	return null.NewString(s, s != "")
}
