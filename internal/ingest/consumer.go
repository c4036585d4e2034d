// Package ingest connects the dispatcher to a message bus: fired alerts are
// consumed from a subscription and dispatch results are published to a topic.
package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gocloud.dev/pubsub"

	"alert-delivery/internal/logging"
	"alert-delivery/internal/models"
)

// Dispatcher is satisfied by *notify.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert models.FiredAlert) models.DeliveryResult
}

// Stats counts messages handled by a consumer.
type Stats struct {
	Dispatched int64 `json:"dispatched"`
	Rejected   int64 `json:"rejected"`
}

// Consumer receives JSON-encoded fired alerts and dispatches them.
type Consumer struct {
	subscription *pubsub.Subscription
	dispatcher   Dispatcher
	logger       zerolog.Logger
	shutdown     chan struct{}
	once         sync.Once

	dispatched atomic.Int64
	rejected   atomic.Int64

	retryDelay time.Duration
}

// NewConsumer creates a consumer reading from subscription.
func NewConsumer(subscription *pubsub.Subscription, dispatcher Dispatcher, logger zerolog.Logger) *Consumer {
	return &Consumer{
		subscription: subscription,
		dispatcher:   dispatcher,
		logger:       logging.WithComponent(logger, "ingest"),
		shutdown:     make(chan struct{}),
		retryDelay:   10 * time.Millisecond,
	}
}

// Run receives and dispatches messages until ctx is cancelled or Shutdown
// is called. It is a blocking call.
func (c *Consumer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-c.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	c.logger.Info().Msg("Consumer started")
	for {
		msg, err := c.subscription.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().
					Int64("dispatched", c.dispatched.Load()).
					Int64("rejected", c.rejected.Load()).
					Msg("Consumer stopped")
				return nil
			}
			c.logger.Error().Err(err).Msg("Failed to receive message")
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
			continue
		}

		c.handle(ctx, msg)
	}
}

// Shutdown stops Run. Safe to call more than once.
func (c *Consumer) Shutdown() {
	c.once.Do(func() { close(c.shutdown) })
}

// Stats returns the message counters.
func (c *Consumer) Stats() Stats {
	return Stats{Dispatched: c.dispatched.Load(), Rejected: c.rejected.Load()}
}

func (c *Consumer) handle(ctx context.Context, msg *pubsub.Message) {
	var alert models.FiredAlert
	if err := json.Unmarshal(msg.Body, &alert); err != nil {
		c.reject(msg, err)
		return
	}
	if err := alert.Validate(); err != nil {
		c.reject(msg, err)
		return
	}

	result := c.dispatcher.Dispatch(ctx, alert)
	msg.Ack()
	c.dispatched.Add(1)

	logger := logging.WithAlert(c.logger, alert)
	logger.Debug().
		Str("message_id", msg.LoggableID).
		Str("result_id", result.ID).
		Int("successful", result.SuccessfulChannels).
		Int("total", result.TotalChannels).
		Msg("Message dispatched")
}

// reject drops a message that can never be dispatched. It is acked, not
// nacked: redelivery would return the same bytes and loop forever.
func (c *Consumer) reject(msg *pubsub.Message, err error) {
	c.rejected.Add(1)
	c.logger.Warn().
		Err(err).
		Str("message_id", msg.LoggableID).
		Msg("Dropping malformed alert message")
	msg.Ack()
}
