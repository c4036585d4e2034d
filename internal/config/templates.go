package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Alert Delivery Configuration
# Every key is optional; commented values show the defaults.
# Any key can be overridden from the environment, e.g. ALERTD_WEBHOOK_TIMEOUT=5s.

[logging]
# Log level: debug, info, warn, error
level = "info"
console = true
file = true
# file_path = "~/.config/alert-delivery/logs/alertd.log"
# Rotation: size in MB, number of old files, age in days
max_size = 100
max_backups = 7
max_age = 30

[database]
# SQLite file holding preferences and delivery history
# path = "~/.config/alert-delivery/alertd.db"

[audio]
# Engine: "command" (external player), "bell" (terminal bell) or "none"
engine = "command"
# Directory containing default.wav, chime.wav, bell.wav, alert.wav, success.wav, warning.wav.
# Missing tones are generated there on startup when engine = "command".
# tones_dir = "~/.config/alert-delivery/tones"
# Player command; empty picks the first of paplay, afplay, aplay found on PATH
player = ""

[toast]
# Maximum number of toasts kept on screen
max_visible = 5
color_enabled = true

[webhook]
# Upper bound on a single webhook request
timeout = "10s"
user_agent = "alertd/1.0"

[ingest]
# Event bus URLs, e.g. "nats://alerts.fired" or "mem://alerts"
subscription_url = ""
results_topic_url = ""

# Preferences used until they are changed with "alertd prefs set"
[defaults.in_app]
enabled = true
# top-left, top-center, top-right, bottom-left, bottom-center, bottom-right
position = "top-right"
# 0 keeps the toast until dismissed
auto_close_ms = 5000
sound = true

[defaults.sound]
enabled = true
tone = "default"
# 0.0 - 1.0
volume = 0.7

[defaults.webhook]
enabled = false
url = ""
channel = ""
username = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
