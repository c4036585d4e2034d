// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"alert-delivery/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "alert-delivery", "logs", "alertd.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File && cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stderr
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(writer).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Caller().
		Logger()
}

// ParseLevel maps a config level name to a zerolog level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether level is a recognised level name.
func ValidLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithChannel adds a channel name to the logger context.
func WithChannel(logger zerolog.Logger, ch models.Channel) zerolog.Logger {
	return logger.With().Str("channel", string(ch)).Logger()
}

// WithAlert adds the alert identifiers to the logger context.
func WithAlert(logger zerolog.Logger, alert models.FiredAlert) zerolog.Logger {
	return logger.With().
		Int64("alert_id", alert.AlertID).
		Int64("rule_id", alert.RuleID).
		Str("symbol", alert.Symbol).
		Logger()
}

// WithComponent adds a component name to the logger context.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// LogOutcome logs one channel outcome.
func LogOutcome(logger zerolog.Logger, outcome models.DeliveryOutcome) {
	if outcome.OK() {
		logger.Debug().
			Str("event", "outcome").
			Str("channel", string(outcome.Channel)).
			Str("status", string(outcome.Status)).
			Msg("Channel delivered")
		return
	}
	logger.Warn().
		Str("event", "outcome").
		Str("channel", string(outcome.Channel)).
		Str("status", string(outcome.Status)).
		Str("reason", outcome.Error).
		Msg("Channel delivery failed")
}

// LogDispatch logs the aggregated result of a dispatch.
func LogDispatch(logger zerolog.Logger, alert models.FiredAlert, result models.DeliveryResult, duration time.Duration) {
	event := logger.Info()
	if !result.AllDelivered() {
		event = logger.Warn()
	}
	event.
		Str("event", "dispatch").
		Str("delivery_id", result.ID).
		Int64("alert_id", alert.AlertID).
		Str("symbol", alert.Symbol).
		Str("condition", string(alert.Condition)).
		Int("total", result.TotalChannels).
		Int("delivered", result.SuccessfulChannels).
		Dur("duration", duration).
		Msg("Alert dispatched")
}
