package cli

import (
	"fmt"
	"strings"

	"github.com/guregu/null/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/models"
	"alert-delivery/internal/security"
)

func newPrefsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prefs",
		Aliases: []string{"preferences"},
		Short:   "View and change notification preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current notification preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p := app.Prefs.Preferences()
			if output.IsJSON() {
				return output.JSON(p)
			}
			showPreferences(output, p)
			return nil
		},
	})

	cmd.AddCommand(newPrefsSetCmd(app))

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore default notification preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Prefs.Reset(cmd.Context()); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(app.Prefs.Preferences())
			}
			output.Success("✓ Preferences reset to defaults")
			return nil
		},
	})

	return cmd
}

func newPrefsSetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change notification preferences",
		Long: `Set changes only the preferences named by flags; everything else is kept.
Passing an empty --webhook-channel or --webhook-username clears that override.`,
		Example: `  alertd prefs set --webhook-enabled --webhook-url https://hooks.slack.com/services/T000/B000/XXX
  alertd prefs set --sound-enabled=false
  alertd prefs set --position bottom-left --auto-close-ms 8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			upd, err := updateFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			if upd.Empty() {
				return fmt.Errorf("%w: no preference flags given", apperrors.ErrInputValidation)
			}

			p, err := app.Prefs.Update(cmd.Context(), upd)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(p)
			}
			output.Success("✓ Preferences updated")
			output.Println()
			showPreferences(output, p)
			return nil
		},
	}

	f := cmd.Flags()
	f.Bool("inapp-enabled", true, "enable toast notifications")
	f.String("position", string(models.DefaultPosition), "toast position: top-left, top-center, top-right, bottom-left, bottom-center, bottom-right")
	f.Int64("auto-close-ms", models.DefaultAutoCloseMS, "toast auto-close delay in milliseconds (0 keeps it open)")
	f.Bool("inapp-sound", true, "play the tone with each toast")
	f.Bool("sound-enabled", true, "enable the sound channel")
	f.String("tone", models.DefaultTone, "tone name")
	f.Float64("volume", models.DefaultVolume, "volume between 0.0 and 1.0")
	f.Bool("webhook-enabled", false, "enable the webhook channel")
	f.String("webhook-url", "", "incoming webhook URL")
	f.String("webhook-channel", "", "channel override sent with the payload")
	f.String("webhook-username", "", "username override sent with the payload")

	return cmd
}

// updateFromFlags builds a partial update from the flags the user changed.
func updateFromFlags(f *pflag.FlagSet) (models.PreferencesUpdate, error) {
	var upd models.PreferencesUpdate

	inApp := &models.InAppUpdate{}
	if f.Changed("inapp-enabled") {
		v, _ := f.GetBool("inapp-enabled")
		inApp.Enabled = null.BoolFrom(v)
	}
	if f.Changed("position") {
		v, _ := f.GetString("position")
		inApp.Position = null.StringFrom(strings.ToLower(v))
	}
	if f.Changed("auto-close-ms") {
		v, _ := f.GetInt64("auto-close-ms")
		inApp.AutoCloseMS = null.IntFrom(v)
	}
	if f.Changed("inapp-sound") {
		v, _ := f.GetBool("inapp-sound")
		inApp.PlaySound = null.BoolFrom(v)
	}
	if *inApp != (models.InAppUpdate{}) {
		upd.InApp = inApp
	}

	sound := &models.SoundUpdate{}
	if f.Changed("sound-enabled") {
		v, _ := f.GetBool("sound-enabled")
		sound.Enabled = null.BoolFrom(v)
	}
	if f.Changed("tone") {
		v, _ := f.GetString("tone")
		sound.Tone = null.StringFrom(v)
	}
	if f.Changed("volume") {
		v, _ := f.GetFloat64("volume")
		sound.Volume = null.FloatFrom(v)
	}
	if *sound != (models.SoundUpdate{}) {
		upd.Sound = sound
	}

	webhook := &models.WebhookUpdate{}
	if f.Changed("webhook-enabled") {
		v, _ := f.GetBool("webhook-enabled")
		webhook.Enabled = null.BoolFrom(v)
	}
	if f.Changed("webhook-url") {
		v, _ := f.GetString("webhook-url")
		webhook.URL = null.StringFrom(strings.TrimSpace(v))
	}
	if f.Changed("webhook-channel") {
		v, _ := f.GetString("webhook-channel")
		webhook.Channel = null.StringFrom(v)
	}
	if f.Changed("webhook-username") {
		v, _ := f.GetString("webhook-username")
		webhook.Username = null.StringFrom(v)
	}
	if *webhook != (models.WebhookUpdate{}) {
		upd.Webhook = webhook
	}

	return upd, upd.Validate()
}

func showPreferences(output *Output, p models.NotificationPreferences) {
	onOff := func(b bool) string {
		if b {
			return output.Green("on")
		}
		return output.DimText("off")
	}

	output.Bold("In-App Toasts")
	output.Printf("  Enabled:         %s\n", onOff(p.InApp.Enabled))
	output.Printf("  Position:        %s\n", p.InApp.Position)
	output.Printf("  Auto Close:      %d ms\n", p.InApp.AutoCloseMS)
	output.Printf("  Toast Sound:     %s\n", onOff(p.InApp.PlaySound))
	output.Println()

	output.Bold("Sound")
	output.Printf("  Enabled:         %s\n", onOff(p.Sound.Enabled))
	output.Printf("  Tone:            %s\n", p.Sound.Tone)
	output.Printf("  Volume:          %.2f\n", p.Sound.Volume)
	output.Println()

	output.Bold("Webhook")
	output.Printf("  Enabled:         %s\n", onOff(p.Webhook.Enabled))
	url := security.RedactURL(p.Webhook.URL)
	if url == "" {
		url = output.DimText("(not configured)")
	}
	output.Printf("  URL:             %s\n", url)
	if p.Webhook.Channel.Valid {
		output.Printf("  Channel:         %s\n", p.Webhook.Channel.String)
	}
	if p.Webhook.Username.Valid {
		output.Printf("  Username:        %s\n", p.Webhook.Username.String)
	}
}
