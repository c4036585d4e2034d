// Package config provides configuration management for the alert delivery service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guregu/null/v5"
	"github.com/spf13/viper"

	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/logging"
	"alert-delivery/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Toast    ToastConfig    `mapstructure:"toast"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Defaults DefaultsConfig `mapstructure:"defaults"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"` // debug, info, warn, error
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AudioConfig selects and configures the audio engine.
type AudioConfig struct {
	Engine   string `mapstructure:"engine"` // command, bell, none
	TonesDir string `mapstructure:"tones_dir"`
	Player   string `mapstructure:"player"` // empty picks the first available player
}

// ToastConfig holds terminal overlay settings.
type ToastConfig struct {
	MaxVisible   int  `mapstructure:"max_visible"`
	ColorEnabled bool `mapstructure:"color_enabled"`
}

// WebhookConfig holds HTTP client settings for the webhook channel.
type WebhookConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// IngestConfig holds event bus URLs. Empty URLs disable the corresponding component.
type IngestConfig struct {
	SubscriptionURL string `mapstructure:"subscription_url"`
	ResultsTopicURL string `mapstructure:"results_topic_url"`
}

// DefaultsConfig holds the preferences used when nothing has been persisted yet.
type DefaultsConfig struct {
	InApp   InAppDefaults   `mapstructure:"in_app"`
	Sound   SoundDefaults   `mapstructure:"sound"`
	Webhook WebhookDefaults `mapstructure:"webhook"`
}

// InAppDefaults mirrors models.InAppPreferences.
type InAppDefaults struct {
	Enabled     bool   `mapstructure:"enabled"`
	Position    string `mapstructure:"position"`
	AutoCloseMS int64  `mapstructure:"auto_close_ms"`
	Sound       bool   `mapstructure:"sound"`
}

// SoundDefaults mirrors models.SoundPreferences.
type SoundDefaults struct {
	Enabled bool    `mapstructure:"enabled"`
	Tone    string  `mapstructure:"tone"`
	Volume  float64 `mapstructure:"volume"`
}

// WebhookDefaults mirrors models.WebhookPreferences.
type WebhookDefaults struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Channel  string `mapstructure:"channel"`
	Username string `mapstructure:"username"`
}

// EnvPrefix is prepended to environment overrides, e.g. ALERTD_WEBHOOK_TIMEOUT.
const EnvPrefix = "ALERTD"

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/alert-delivery"
	}
	return filepath.Join(home, ".config", "alert-delivery")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by a commented template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Dir = configDir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	// Unmarshal of pure defaults cannot fail.
	_ = newViper("").Unmarshal(cfg)
	cfg.Dir = DefaultConfigDir()
	return cfg
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, configDir)
	return v
}

func setDefaults(v *viper.Viper, configDir string) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	logDefaults := logging.DefaultLogConfig()
	prefs := models.DefaultPreferences()

	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.console", logDefaults.Console)
	v.SetDefault("logging.file", logDefaults.File)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "alertd.log"))
	v.SetDefault("logging.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.max_age", logDefaults.MaxAge)

	v.SetDefault("database.path", filepath.Join(configDir, "alertd.db"))

	v.SetDefault("audio.engine", "command")
	v.SetDefault("audio.tones_dir", filepath.Join(configDir, "tones"))
	v.SetDefault("audio.player", "")

	v.SetDefault("toast.max_visible", 5)
	v.SetDefault("toast.color_enabled", true)

	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("webhook.user_agent", "alertd/1.0")

	v.SetDefault("ingest.subscription_url", "")
	v.SetDefault("ingest.results_topic_url", "")

	v.SetDefault("defaults.in_app.enabled", prefs.InApp.Enabled)
	v.SetDefault("defaults.in_app.position", string(prefs.InApp.Position))
	v.SetDefault("defaults.in_app.auto_close_ms", prefs.InApp.AutoCloseMS)
	v.SetDefault("defaults.in_app.sound", prefs.InApp.PlaySound)
	v.SetDefault("defaults.sound.enabled", prefs.Sound.Enabled)
	v.SetDefault("defaults.sound.tone", prefs.Sound.Tone)
	v.SetDefault("defaults.sound.volume", prefs.Sound.Volume)
	v.SetDefault("defaults.webhook.enabled", prefs.Webhook.Enabled)
	v.SetDefault("defaults.webhook.url", "")
	v.SetDefault("defaults.webhook.channel", "")
	v.SetDefault("defaults.webhook.username", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return invalid("logging.level", c.Logging.Level, "must be debug, info, warn or error")
	}

	switch c.Audio.Engine {
	case "command", "bell", "none":
	default:
		return invalid("audio.engine", c.Audio.Engine, "must be command, bell or none")
	}

	if c.Toast.MaxVisible <= 0 {
		return invalid("toast.max_visible", c.Toast.MaxVisible, "must be positive")
	}

	if c.Webhook.Timeout <= 0 {
		return invalid("webhook.timeout", c.Webhook.Timeout, "must be positive")
	}

	if c.Database.Path == "" {
		return invalid("database.path", c.Database.Path, "must not be empty")
	}

	d := c.Defaults
	if !models.ToastPosition(d.InApp.Position).Valid() {
		return invalid("defaults.in_app.position", d.InApp.Position, "unsupported position")
	}
	if d.InApp.AutoCloseMS < 0 {
		return invalid("defaults.in_app.auto_close_ms", d.InApp.AutoCloseMS, "must not be negative")
	}
	if d.Sound.Volume < 0 || d.Sound.Volume > 1 {
		return invalid("defaults.sound.volume", d.Sound.Volume, "must be between 0.0 and 1.0")
	}

	return nil
}

func invalid(field string, value interface{}, msg string) error {
	return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, apperrors.NewValidationError(field, value, msg))
}

// LogConfig converts the logging section for the logging package.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}

// DefaultPreferences builds the preferences used before anything is persisted.
func (c *Config) DefaultPreferences() models.NotificationPreferences {
	d := c.Defaults
	prefs := models.NotificationPreferences{
		InApp: models.InAppPreferences{
			Enabled:     d.InApp.Enabled,
			Position:    models.ToastPosition(d.InApp.Position),
			AutoCloseMS: d.InApp.AutoCloseMS,
			PlaySound:   d.InApp.Sound,
		},
		Sound: models.SoundPreferences{
			Enabled: d.Sound.Enabled,
			Tone:    d.Sound.Tone,
			Volume:  d.Sound.Volume,
		},
		Webhook: models.WebhookPreferences{
			Enabled: d.Webhook.Enabled,
			URL:     d.Webhook.URL,
		},
	}
	prefs.Webhook.Channel = null.NewString(d.Webhook.Channel, d.Webhook.Channel != "")
	prefs.Webhook.Username = null.NewString(d.Webhook.Username, d.Webhook.Username != "")
	return prefs.Normalize()
}
