package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/models"
)

// InAppDeliverer shows a toast for each alert.
type InAppDeliverer struct {
	renderer Renderer
	player   SoundPlayer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewInAppDeliverer creates an in-app deliverer. player may be nil.
func NewInAppDeliverer(renderer Renderer, player SoundPlayer, logger zerolog.Logger) *InAppDeliverer {
	return &InAppDeliverer{
		renderer: renderer,
		player:   player,
		logger:   logger.With().Str("channel", string(models.ChannelInApp)).Logger(),
		now:      time.Now,
	}
}

// Channel returns models.ChannelInApp.
func (d *InAppDeliverer) Channel() models.Channel {
	return models.ChannelInApp
}

// Deliver renders the toast. When toast sound is on and the sound channel is
// enabled the configured tone is played as well; that may sound twice when
// the sound channel also fires for the same alert.
func (d *InAppDeliverer) Deliver(ctx context.Context, alert models.FiredAlert, prefs models.NotificationPreferences) models.DeliveryOutcome {
	if d.renderer == nil {
		return models.Failed(models.ChannelInApp, d.now(), apperrors.ErrRendererUnavailable.Error())
	}

	display := FormatForDisplay(alert)
	toast := Toast{
		Variant:   display.Tone,
		Title:     display.Title,
		Body:      display.Message,
		Symbol:    display.Symbol,
		Position:  prefs.InApp.Position,
		AutoClose: time.Duration(prefs.InApp.AutoCloseMS) * time.Millisecond,
		CreatedAt: d.now(),
	}

	if err := d.renderer.Render(ctx, toast); err != nil {
		d.logger.Warn().Err(err).Str("symbol", alert.Symbol).Msg("Failed to render toast")
		return models.Failed(models.ChannelInApp, d.now(), err.Error())
	}

	if prefs.InApp.PlaySound && prefs.Sound.Enabled && d.player != nil {
		if err := d.player.Play(ctx, prefs.Sound.Tone, prefs.Sound.Volume); err != nil {
			d.logger.Warn().Err(err).Str("tone", prefs.Sound.Tone).Msg("Toast sound failed")
		}
	}

	return models.Delivered(models.ChannelInApp, d.now())
}
