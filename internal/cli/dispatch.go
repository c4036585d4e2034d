package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/models"
	"alert-delivery/internal/notify"
)

func newDispatchCmd(app *App) *cobra.Command {
	var (
		alert     models.FiredAlert
		condition string
		timestamp string
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver a fired alert on every enabled channel",
		Long: `Dispatch delivers one fired alert to each channel enabled in the
current notification preferences and prints the per-channel outcomes.`,
		Example: `  alertd dispatch --symbol ES --condition above --trigger 4250.5 --threshold 4250
  alertd dispatch --symbol CL --condition crosses_below --trigger 71.2 --threshold 71.5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			alert.Symbol = strings.ToUpper(strings.TrimSpace(alert.Symbol))
			alert.Condition = models.Condition(condition)
			alert.Timestamp = time.Now()
			if timestamp != "" {
				ts, err := time.Parse(time.RFC3339, timestamp)
				if err != nil {
					return apperrors.NewValidationError("timestamp", timestamp, "must be RFC3339")
				}
				alert.Timestamp = ts
			}
			if err := alert.Validate(); err != nil {
				return fmt.Errorf("%w: %v", apperrors.ErrInputValidation, err)
			}

			result := app.Dispatcher.Dispatch(cmd.Context(), alert)

			if output.IsJSON() {
				return output.JSON(result)
			}
			renderResult(output, alert, result)
			return nil
		},
	}

	cmd.Flags().Int64Var(&alert.AlertID, "alert-id", time.Now().Unix(), "alert identifier")
	cmd.Flags().Int64Var(&alert.RuleID, "rule-id", 0, "rule that fired")
	cmd.Flags().Int64Var(&alert.InstrumentID, "instrument-id", 0, "instrument identifier")
	cmd.Flags().StringVarP(&alert.Symbol, "symbol", "s", "", "instrument symbol (required)")
	cmd.Flags().StringVarP(&condition, "condition", "c", string(models.ConditionAbove),
		"condition: "+strings.Join(conditionNames(), ", "))
	cmd.Flags().Float64Var(&alert.TriggerValue, "trigger", 0, "value that triggered the alert")
	cmd.Flags().Float64Var(&alert.ThresholdValue, "threshold", 0, "configured threshold")
	cmd.Flags().StringVarP(&alert.Message, "message", "m", "", "custom alert message")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "fire time in RFC3339 (default: now)")
	cmd.MarkFlagRequired("symbol")

	return cmd
}

func conditionNames() []string {
	conds := models.Conditions()
	names := make([]string, len(conds))
	for i, c := range conds {
		names[i] = string(c)
	}
	return names
}

func renderResult(output *Output, alert models.FiredAlert, result models.DeliveryResult) {
	display := notify.FormatForDisplay(alert)
	output.Bold("Alert %d: %s", alert.AlertID, display.Symbol)
	output.Dim("  %s", display.Message)
	output.Println()

	if result.TotalChannels == 0 {
		output.Warning("No channels enabled; nothing was delivered")
		return
	}
	for _, o := range result.Outcomes {
		output.OutcomeLine(o)
	}
	output.Println()

	summary := fmt.Sprintf("%d/%d channels delivered", result.SuccessfulChannels, result.TotalChannels)
	if result.AllDelivered() {
		output.Success("%s", summary)
	} else {
		output.Warning("%s", summary)
	}
	output.Dim("Result %s", result.ID)
}
