package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"alert-delivery/internal/logging"
	"alert-delivery/internal/models"
)

// Dispatcher fans a fired alert out to every enabled channel and joins the
// outcomes. It keeps no per-dispatch state, so Dispatch may be called
// concurrently.
type Dispatcher struct {
	source     PreferenceSource
	deliverers map[models.Channel]Deliverer
	sinks      []AuditSink
	logger     zerolog.Logger
	mu         sync.RWMutex
	now        func() time.Time
}

// NewDispatcher creates a dispatcher. A later deliverer for the same channel replaces an earlier one.
func NewDispatcher(source PreferenceSource, deliverers []Deliverer, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		source:     source,
		deliverers: make(map[models.Channel]Deliverer, len(deliverers)),
		logger:     logging.WithComponent(logger, "dispatcher"),
		now:        time.Now,
	}
	for _, dl := range deliverers {
		if dl != nil {
			d.deliverers[dl.Channel()] = dl
		}
	}
	return d
}

// AddAuditSink registers a sink that receives every result.
func (d *Dispatcher) AddAuditSink(sink AuditSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

// Dispatch delivers alert on every channel enabled in the current
// preferences and returns once every attempt has finished. It never fails:
// channel errors are reported as failed outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, alert models.FiredAlert) models.DeliveryResult {
	started := d.now()

	// Snapshot once; later preference changes do not affect this dispatch.
	prefs := d.source.Preferences()
	channels := prefs.EnabledChannels()

	// Attempts are not aborted when the caller gives up.
	runCtx := context.WithoutCancel(ctx)
	logger := logging.WithAlert(d.logger, alert)

	outcomes := make(chan models.DeliveryOutcome, len(channels))
	var wg conc.WaitGroup
	for _, ch := range channels {
		deliverer := d.deliverers[ch]
		wg.Go(func() {
			outcomes <- d.attempt(runCtx, ch, deliverer, alert, prefs)
		})
	}
	wg.Wait()
	close(outcomes)

	collected := make([]models.DeliveryOutcome, 0, len(channels))
	for o := range outcomes {
		logging.LogOutcome(logger, o)
		collected = append(collected, o)
	}

	result := models.NewDeliveryResult(alert.AlertID, started, len(channels), collected)
	logging.LogDispatch(logger, alert, result, d.now().Sub(started))

	d.audit(runCtx, alert, result)
	return result
}

// attempt runs one deliverer and converts a panic into a failed outcome.
func (d *Dispatcher) attempt(ctx context.Context, ch models.Channel, deliverer Deliverer, alert models.FiredAlert, prefs models.NotificationPreferences) (outcome models.DeliveryOutcome) {
	if deliverer == nil {
		return models.Failed(ch, d.now(), "no deliverer registered for channel")
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("channel", string(ch)).Interface("panic", r).Msg("Deliverer panicked")
			outcome = models.Failed(ch, d.now(), fmt.Sprintf("deliverer panicked: %v", r))
		}
	}()

	outcome = deliverer.Deliver(ctx, alert, prefs)
	outcome.Channel = ch
	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = d.now()
	}
	// Anything other than delivered is a failure with a reason.
	if !outcome.OK() {
		outcome = models.Failed(ch, outcome.Timestamp, outcome.Error)
	}
	return outcome
}

func (d *Dispatcher) audit(ctx context.Context, alert models.FiredAlert, result models.DeliveryResult) {
	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.RecordDelivery(ctx, alert, result); err != nil {
			d.logger.Warn().Err(err).Str("delivery_id", result.ID).Msg("Failed to record delivery")
		}
	}
}
