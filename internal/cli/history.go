package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"alert-delivery/internal/models"
	"alert-delivery/internal/store"
)

func newHistoryCmd(app *App) *cobra.Command {
	var (
		symbol     string
		limit      int
		failedOnly bool
		since      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show delivery history",
		Long:  "List recent dispatches with their per-channel outcomes, newest first.",
		Example: `  alertd history --symbol ES --limit 10
  alertd history --failed --since 24h
  alertd history stats --since 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireStore(app); err != nil {
				return err
			}

			filter := store.DeliveryFilter{
				Symbol:     strings.ToUpper(symbol),
				FailedOnly: failedOnly,
				Limit:      limit,
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			records, err := app.Store.GetDeliveries(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if records == nil {
				records = []store.DeliveryRecord{}
			}

			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Dim("No deliveries recorded")
				return nil
			}

			table := NewTable(output, "TIME", "ALERT", "SYMBOL", "CONDITION", "DELIVERED", "FAILURES")
			for _, r := range records {
				table.AddRow(
					r.DispatchedAt.Local().Format("2006-01-02 15:04:05"),
					strconv.FormatInt(r.Result.AlertID, 10),
					r.Symbol,
					string(r.Condition),
					deliveredCell(output, r.Result),
					TruncateString(failureSummary(r.Result), 60),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "only show this symbol")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows (0 for all)")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only show dispatches with a failed channel")
	cmd.Flags().DurationVar(&since, "since", 0, "only show dispatches newer than this, e.g. 24h")

	cmd.AddCommand(newHistoryStatsCmd(app))
	cmd.AddCommand(newHistoryPruneCmd(app))

	return cmd
}

func newHistoryStatsCmd(app *App) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-channel delivery success rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireStore(app); err != nil {
				return err
			}

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			stats, err := app.Store.GetChannelStats(cmd.Context(), from)
			if err != nil {
				return err
			}
			if stats == nil {
				stats = []store.ChannelStats{}
			}

			if output.IsJSON() {
				return output.JSON(stats)
			}
			if len(stats) == 0 {
				output.Dim("No deliveries recorded")
				return nil
			}

			table := NewTable(output, "CHANNEL", "ATTEMPTS", "DELIVERED", "SUCCESS", "LAST ERROR")
			for _, s := range stats {
				table.AddRow(
					string(s.Channel),
					strconv.Itoa(s.Attempts),
					strconv.Itoa(s.Delivered),
					output.FormatRate(s.SuccessRate()),
					TruncateString(s.LastError, 50),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "only count outcomes newer than this, e.g. 168h")
	return cmd
}

func newHistoryPruneCmd(app *App) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old delivery history",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireStore(app); err != nil {
				return err
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			n, err := app.Store.PruneDeliveries(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"pruned": n})
			}
			output.Success("✓ Pruned %d deliveries", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete dispatches older than this")
	return cmd
}

func requireStore(app *App) error {
	if app.Store == nil {
		return fmt.Errorf("delivery history is not available in ephemeral mode")
	}
	return nil
}

func deliveredCell(output *Output, r models.DeliveryResult) string {
	cell := fmt.Sprintf("%d/%d", r.SuccessfulChannels, r.TotalChannels)
	if r.AllDelivered() {
		return output.Green(cell)
	}
	return output.Red(cell)
}

func failureSummary(r models.DeliveryResult) string {
	failed := r.Failures()
	parts := make([]string, 0, len(failed))
	for _, o := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", o.Channel, o.Error))
	}
	return strings.Join(parts, "; ")
}
