package cli

import (
	"github.com/spf13/cobra"

	"alert-delivery/internal/audio"
)

func newTonesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tones",
		Short: "List sound tones",
		Long:  "List every known tone and whether it was loaded from the tones directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			loaded := make(map[string]bool)
			for _, name := range app.Audio.Tones() {
				loaded[name] = true
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"dir":    app.Config.Audio.TonesDir,
					"engine": app.Config.Audio.Engine,
					"loaded": app.Audio.Tones(),
				})
			}

			output.Bold("Tones (%s engine)", app.Config.Audio.Engine)
			output.Dim("  %s", app.Config.Audio.TonesDir)
			for _, name := range audio.ToneNames {
				status := output.DimText("missing")
				if loaded[name] {
					status = output.Green("loaded")
				}
				output.Printf("  %-10s %s\n", name, status)
			}
			return nil
		},
	}
}
