package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gocloud.dev/pubsub"
	"golang.org/x/sync/errgroup"

	"alert-delivery/internal/ingest"
	"alert-delivery/internal/security"
)

func newServeCmd(app *App) *cobra.Command {
	var subscriptionURL, resultsURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Consume fired alerts from the message bus and deliver them",
		Long: `Serve receives JSON-encoded fired alerts from a subscription and
dispatches each one. When a results topic is configured, every delivery
result is published to it.

URLs use gocloud.dev pubsub schemes such as nats://subject or mem://name.`,
		Example: `  alertd serve --subscription nats://alerts.fired --results nats://alerts.delivered`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subscriptionURL == "" {
				subscriptionURL = app.Config.Ingest.SubscriptionURL
			}
			if resultsURL == "" {
				resultsURL = app.Config.Ingest.ResultsTopicURL
			}
			if subscriptionURL == "" {
				return fmt.Errorf("no subscription URL: set [ingest] subscription_url or pass --subscription")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, app, subscriptionURL, resultsURL)
		},
	}

	cmd.Flags().StringVar(&subscriptionURL, "subscription", "", "subscription URL (default: [ingest] subscription_url)")
	cmd.Flags().StringVar(&resultsURL, "results", "", "results topic URL (default: [ingest] results_topic_url)")
	return cmd
}

// serve runs the consumer until ctx is done.
func serve(ctx context.Context, app *App, subscriptionURL, resultsURL string) error {
	logger := app.Logger

	subscription, err := pubsub.OpenSubscription(ctx, subscriptionURL)
	if err != nil {
		return fmt.Errorf("opening subscription %s: %w", subscriptionURL, err)
	}
	defer func() {
		if err := subscription.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Failed to shut down subscription")
		}
	}()

	if resultsURL != "" {
		topic, err := pubsub.OpenTopic(ctx, resultsURL)
		if err != nil {
			return fmt.Errorf("opening results topic %s: %w", resultsURL, err)
		}
		defer func() {
			if err := topic.Shutdown(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("Failed to shut down results topic")
			}
		}()
		app.Dispatcher.AddAuditSink(ingest.NewResultPublisher(topic))
	}

	consumer := ingest.NewConsumer(subscription, app.Dispatcher, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		consumer.Shutdown()
		return nil
	})

	started := time.Now()
	logger.Info().
		Str("subscription", security.RedactURL(subscriptionURL)).
		Str("results", security.RedactURL(resultsURL)).
		Msg("Serving alerts")

	err = g.Wait()
	stats := consumer.Stats()
	logger.Info().
		Int64("dispatched", stats.Dispatched).
		Int64("rejected", stats.Rejected).
		Str("uptime", FormatDuration(time.Since(started))).
		Msg("Serve stopped")
	return err
}
