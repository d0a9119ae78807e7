package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrViewLimitReached is returned when a download would exceed a
	// document's view limit.
	ErrViewLimitReached = errors.New("view limit reached")
)

// ValidationError reports malformed or out-of-bounds input. The message is
// safe to surface to the caller.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PermissionDeniedError is returned when a capability check fails. Reason is
// recorded in the audit trail only; Error deliberately stays generic so a
// caller cannot enumerate which grant would have succeeded.
type PermissionDeniedError struct {
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permission"
}

// ConfigurationError reports missing or invalid deployment configuration.
// It is fatal at the call site and must not be retried.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return e.Msg
}

// NewConfigurationError builds a ConfigurationError from a format string.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}
