// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrWebhookURLMissing   = errors.New("Webhook URL not configured")
	ErrRendererUnavailable = errors.New("notification renderer not mounted")
	ErrAudioUnavailable    = errors.New("audio engine unavailable")
	ErrToneNotCached       = errors.New("tone not cached")
	ErrUnknownChannel      = errors.New("unknown channel")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrDatabaseError       = errors.New("database error")
	ErrNotFound            = errors.New("not found")
	ErrInputValidation     = errors.New("input validation failed")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DeliveryError represents a failed channel operation.
type DeliveryError struct {
	Channel string
	Op      string
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("delivery error [%s]: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("delivery error [%s] %s: %v", e.Channel, e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewDeliveryError creates a new DeliveryError.
func NewDeliveryError(channel, op string, err error) *DeliveryError {
	return &DeliveryError{
		Channel: channel,
		Op:      op,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
