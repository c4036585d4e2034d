package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"

	"alert-delivery/internal/models"
)

type recordingDispatcher struct {
	alerts chan models.FiredAlert
}

func (d *recordingDispatcher) Dispatch(_ context.Context, alert models.FiredAlert) models.DeliveryResult {
	d.alerts <- alert
	return models.NewDeliveryResult(alert.AlertID, time.Now(), 0, nil)
}

func openBus(t *testing.T, name string) (*pubsub.Topic, *pubsub.Subscription) {
	t.Helper()
	ctx := context.Background()

	topic, err := pubsub.OpenTopic(ctx, "mem://"+name)
	if err != nil {
		t.Fatalf("opening topic: %v", err)
	}
	t.Cleanup(func() { topic.Shutdown(ctx) })

	sub, err := pubsub.OpenSubscription(ctx, "mem://"+name)
	if err != nil {
		t.Fatalf("opening subscription: %v", err)
	}
	t.Cleanup(func() { sub.Shutdown(ctx) })
	return topic, sub
}

func send(t *testing.T, topic *pubsub.Topic, body []byte) {
	t.Helper()
	if err := topic.Send(context.Background(), &pubsub.Message{Body: body}); err != nil {
		t.Fatalf("sending message: %v", err)
	}
}

func TestConsumer_DispatchesValidAlerts(t *testing.T) {
	topic, sub := openBus(t, "consumer-valid")
	dispatcher := &recordingDispatcher{alerts: make(chan models.FiredAlert, 4)}
	consumer := NewConsumer(sub, dispatcher, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- consumer.Run(context.Background()) }()

	send(t, topic, []byte(`not json`))
	send(t, topic, []byte(`{"alertId":5,"symbol":"","condition":"above"}`))
	send(t, topic, []byte(`{"alertId":6,"ruleId":2,"symbol":"ES","condition":"below","triggerValue":99.5,"thresholdValue":100}`))

	select {
	case got := <-dispatcher.alerts:
		if got.AlertID != 6 || got.Symbol != "ES" || got.Condition != models.ConditionBelow || got.TriggerValue != 99.5 {
			t.Errorf("dispatched alert = %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("valid alert was never dispatched")
	}

	consumer.Shutdown()
	consumer.Shutdown()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	stats := consumer.Stats()
	if stats.Dispatched != 1 {
		t.Errorf("Dispatched = %d, want 1", stats.Dispatched)
	}
	if stats.Rejected != 2 {
		t.Errorf("Rejected = %d, want 2", stats.Rejected)
	}
	select {
	case extra := <-dispatcher.alerts:
		t.Errorf("invalid message was dispatched: %+v", extra)
	default:
	}
}

func TestConsumer_MalformedMessageIsNotRedelivered(t *testing.T) {
	topic, sub := openBus(t, "consumer-malformed")
	consumer := NewConsumer(sub, &recordingDispatcher{alerts: make(chan models.FiredAlert, 1)}, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- consumer.Run(context.Background()) }()

	send(t, topic, []byte(`not json`))

	deadline := time.Now().Add(5 * time.Second)
	for consumer.Stats().Rejected == 0 {
		if time.Now().After(deadline) {
			t.Fatal("malformed message was never received")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A redelivered message would be rejected again almost immediately.
	time.Sleep(300 * time.Millisecond)
	consumer.Shutdown()
	<-done

	if got := consumer.Stats().Rejected; got != 1 {
		t.Errorf("Rejected = %d, want 1", got)
	}
}

func TestConsumer_StopsOnContextCancel(t *testing.T) {
	_, sub := openBus(t, "consumer-cancel")
	consumer := NewConsumer(sub, &recordingDispatcher{alerts: make(chan models.FiredAlert, 1)}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestResultPublisher(t *testing.T) {
	topic, sub := openBus(t, "results")
	publisher := NewResultPublisher(topic)
	ctx := context.Background()

	alert := models.FiredAlert{AlertID: 42, Symbol: "ES", Condition: models.ConditionAbove}
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	result := models.NewDeliveryResult(42, started, 2, []models.DeliveryOutcome{
		models.Delivered(models.ChannelInApp, started),
		models.Failed(models.ChannelWebhook, started, "webhook returned status 500"),
	})

	if err := publisher.RecordDelivery(ctx, alert, result); err != nil {
		t.Fatalf("RecordDelivery() error = %v", err)
	}

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err := sub.Receive(recvCtx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	msg.Ack()

	want := map[string]string{"alert_id": "42", "symbol": "ES", "successful_channels": "1"}
	for k, v := range want {
		if msg.Metadata[k] != v {
			t.Errorf("metadata[%s] = %q, want %q", k, msg.Metadata[k], v)
		}
	}

	var got models.DeliveryResult
	if err := json.Unmarshal(msg.Body, &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.ID != result.ID || len(got.Outcomes) != 2 || got.Outcomes[1].Error != "webhook returned status 500" {
		t.Errorf("published result = %+v", got)
	}
}

func TestResultPublisher_ClosedTopic(t *testing.T) {
	ctx := context.Background()
	topic, err := pubsub.OpenTopic(ctx, "mem://results-closed")
	if err != nil {
		t.Fatal(err)
	}
	topic.Shutdown(ctx)

	err = NewResultPublisher(topic).RecordDelivery(ctx, models.FiredAlert{AlertID: 1}, models.NewDeliveryResult(1, time.Now(), 0, nil))
	if err == nil {
		t.Error("publishing to a shut down topic should fail")
	}
}
