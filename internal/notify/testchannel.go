package notify

import (
	"context"

	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/models"
)

// sampleAlert is the fixed alert used to verify a channel's configuration.
func (d *Dispatcher) sampleAlert() models.FiredAlert {
	return models.FiredAlert{
		Symbol:         "TEST",
		TriggerValue:   100.5,
		ThresholdValue: 100.0,
		Condition:      models.ConditionAbove,
		Message:        "This is a test notification",
		Timestamp:      d.now(),
	}
}

// TestChannel sends a sample alert through a single channel using the
// current preferences with that channel forced on. Other gates, such as a
// missing webhook URL, still apply. Audit sinks are not notified.
func (d *Dispatcher) TestChannel(ctx context.Context, ch models.Channel) models.DeliveryOutcome {
	if !ch.Known() {
		return models.Failed(ch, d.now(), apperrors.ErrUnknownChannel.Error()+": "+string(ch))
	}

	prefs := d.source.Preferences().WithEnabled(ch, true)
	outcome := d.attempt(context.WithoutCancel(ctx), ch, d.deliverers[ch], d.sampleAlert(), prefs)

	d.logger.Info().
		Str("event", "test_channel").
		Str("channel", string(ch)).
		Str("status", string(outcome.Status)).
		Str("reason", outcome.Error).
		Msg("Channel test finished")
	return outcome
}
