package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/models"
)

func newTestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "test <channel>",
		Short: "Send a sample notification on one channel",
		Long: `Test sends a fixed sample alert on the given channel, even when the
channel is disabled in preferences. Channels: in_app, sound, webhook.

Test notifications are not recorded in delivery history.`,
		Example: `  alertd test webhook
  alertd test sound --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			ch, err := models.ParseChannel(args[0])
			if err != nil {
				return fmt.Errorf("%w: %v", apperrors.ErrUnknownChannel, err)
			}

			outcome := app.Dispatcher.TestChannel(cmd.Context(), ch)

			if output.IsJSON() {
				if err := output.JSON(outcome); err != nil {
					return err
				}
			} else {
				output.OutcomeLine(outcome)
			}

			if !outcome.OK() {
				return apperrors.NewDeliveryError(string(ch), "test", fmt.Errorf("%s", outcome.Error))
			}
			return nil
		},
	}
}
