// Package cli provides the command-line interface for the alert delivery service.
package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alert-delivery/internal/audio"
	"alert-delivery/internal/config"
	"alert-delivery/internal/logging"
	"alert-delivery/internal/notify"
	"alert-delivery/internal/prefs"
	"alert-delivery/internal/security"
	"alert-delivery/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// skipSetup marks commands that run without the delivery stack.
const skipSetup = "skip-setup"

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      store.DataStore // nil in ephemeral mode
	Prefs      *prefs.Store
	Audio      *audio.Cache
	Overlay    *notify.Overlay
	Dispatcher *notify.Dispatcher
}

// Execute runs the alertd command tree.
func Execute() error {
	app := &App{}
	defer app.Close()
	return NewRootCmd(app).Execute()
}

// NewRootCmd creates the root command for the CLI. Dependencies are built
// into app before any command that needs them runs.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "alertd",
		Short: "Alert delivery - fan fired alerts out to toast, sound and webhook channels",
		Long: `alertd delivers fired price alerts to every channel enabled in the
notification preferences: an in-terminal toast, a sound tone and a chat webhook.

Each channel is attempted independently; one failing channel never prevents
delivery on the others.

Use 'alertd <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] == "true" {
				return nil
			}
			return app.setup(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/alert-delivery)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("ephemeral", false, "keep preferences in memory and skip delivery history")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newDispatchCmd(app))
	rootCmd.AddCommand(newTestCmd(app))
	rootCmd.AddCommand(newPrefsCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newTonesCmd(app))

	return rootCmd
}

// setup loads configuration and builds the delivery stack.
func (a *App) setup(cmd *cobra.Command) error {
	if a.Dispatcher != nil {
		return nil
	}

	configDir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Logging.Level = "debug"
	}
	a.Config = cfg
	a.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())

	ctx := logging.WithLogger(cmd.Context(), a.Logger)

	var kv prefs.KV
	if ephemeral, _ := cmd.Flags().GetBool("ephemeral"); ephemeral {
		kv = prefs.NewMemoryKV()
		a.Logger.Debug().Msg("Ephemeral mode, preferences kept in memory")
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
		dataStore, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return err
		}
		a.Store = dataStore
		kv = dataStore
		a.Logger.Debug().Str("path", cfg.Database.Path).Msg("SQLite store initialized")
	}
	a.Prefs = prefs.New(ctx, kv, cfg.DefaultPreferences(), a.Logger)

	if cfg.Audio.Engine == "command" {
		if err := audio.WriteDefaultTones(cfg.Audio.TonesDir); err != nil {
			a.Logger.Warn().Err(err).Str("dir", cfg.Audio.TonesDir).Msg("Failed to write default tones")
		}
	}
	engine, err := audio.NewEngine(cfg.Audio.Engine, cfg.Audio.Player, a.Logger)
	if err != nil {
		return err
	}
	a.Audio = audio.NewCache(engine, audio.DefaultSources(cfg.Audio.TonesDir), a.Logger)
	a.Audio.Initialize(ctx)

	a.Overlay = notify.NewOverlay(cmd.ErrOrStderr(), cfg.Toast.MaxVisible, cfg.Toast.ColorEnabled && isTerminal())

	client := &http.Client{Timeout: cfg.Webhook.Timeout}
	a.Dispatcher = notify.NewDispatcher(a.Prefs, []notify.Deliverer{
		notify.NewInAppDeliverer(a.Overlay, a.Audio, a.Logger),
		notify.NewSoundDeliverer(a.Audio, a.Logger),
		notify.NewWebhookDeliverer(client, cfg.Webhook.UserAgent, a.Logger),
	}, a.Logger)
	if a.Store != nil {
		a.Dispatcher.AddAuditSink(a.Store)
	}

	return nil
}

// Close releases everything setup acquired. Safe to call more than once.
func (a *App) Close() {
	if a.Overlay != nil {
		a.Overlay.Unmount()
	}
	if a.Audio != nil {
		if err := a.Audio.Shutdown(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down audio")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
		a.Store = nil
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipSetup: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("alertd v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration directory path",
		Annotations: map[string]string{skipSetup: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				output.JSON(map[string]string{"path": dir})
			} else {
				output.Println(dir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			// setup already failed on an invalid file.
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Storage")
	output.Printf("  Database:        %s\n", cfg.Database.Path)
	output.Println()

	output.Bold("Audio")
	output.Printf("  Engine:          %s\n", cfg.Audio.Engine)
	output.Printf("  Tones:           %s\n", cfg.Audio.TonesDir)
	if cfg.Audio.Player != "" {
		output.Printf("  Player:          %s\n", cfg.Audio.Player)
	}
	output.Println()

	output.Bold("Toasts")
	output.Printf("  Max Visible:     %d\n", cfg.Toast.MaxVisible)
	output.Printf("  Color:           %v\n", cfg.Toast.ColorEnabled)
	output.Println()

	output.Bold("Webhook")
	output.Printf("  Timeout:         %s\n", cfg.Webhook.Timeout)
	output.Printf("  User Agent:      %s\n", cfg.Webhook.UserAgent)
	output.Println()

	output.Bold("Ingest")
	output.Printf("  Subscription:    %s\n", orNone(security.RedactURL(cfg.Ingest.SubscriptionURL)))
	output.Printf("  Results Topic:   %s\n", orNone(security.RedactURL(cfg.Ingest.ResultsTopicURL)))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
