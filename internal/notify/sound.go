package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/models"
)

// SoundDeliverer plays the configured tone.
type SoundDeliverer struct {
	player SoundPlayer
	logger zerolog.Logger
	now    func() time.Time
}

// NewSoundDeliverer creates a sound deliverer.
func NewSoundDeliverer(player SoundPlayer, logger zerolog.Logger) *SoundDeliverer {
	return &SoundDeliverer{
		player: player,
		logger: logger.With().Str("channel", string(models.ChannelSound)).Logger(),
		now:    time.Now,
	}
}

// Channel returns models.ChannelSound.
func (d *SoundDeliverer) Channel() models.Channel {
	return models.ChannelSound
}

// Deliver plays the tone. A silent no-op inside the player still counts as delivered.
func (d *SoundDeliverer) Deliver(ctx context.Context, alert models.FiredAlert, prefs models.NotificationPreferences) models.DeliveryOutcome {
	if d.player == nil {
		// Nothing to call, so nothing raised.
		d.logger.Debug().Msg("No sound player configured")
		return models.Delivered(models.ChannelSound, d.now())
	}

	if err := d.player.Play(ctx, prefs.Sound.Tone, prefs.Sound.Volume); err != nil {
		err = apperrors.NewDeliveryError(string(models.ChannelSound), "play", err)
		d.logger.Warn().Err(err).Str("symbol", alert.Symbol).Str("tone", prefs.Sound.Tone).Msg("Sound delivery failed")
		return models.Failed(models.ChannelSound, d.now(), err.Error())
	}
	return models.Delivered(models.ChannelSound, d.now())
}
