package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"gocloud.dev/pubsub"

	"alert-delivery/internal/models"
)

// ResultPublisher sends every dispatch result to a topic.
type ResultPublisher struct {
	topic *pubsub.Topic
}

// NewResultPublisher creates a publisher for topic.
func NewResultPublisher(topic *pubsub.Topic) *ResultPublisher {
	return &ResultPublisher{topic: topic}
}

// RecordDelivery publishes result as JSON.
func (p *ResultPublisher) RecordDelivery(ctx context.Context, alert models.FiredAlert, result models.DeliveryResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	err = p.topic.Send(ctx, &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			"alert_id":            strconv.FormatInt(alert.AlertID, 10),
			"symbol":              alert.Symbol,
			"successful_channels": strconv.Itoa(result.SuccessfulChannels),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish result %s: %w", result.ID, err)
	}
	return nil
}
