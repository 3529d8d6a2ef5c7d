package convert

import (
	"errors"
	"fmt"

	"audio-converter/internal/domain"
)

var (
	// ErrInvalidSettings is returned when custom settings fail validation.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrInputOutputCollision marks a job whose output would overwrite its input.
	ErrInputOutputCollision = errors.New("output path collides with input path")
	// ErrProcessLaunch is returned when the OS could not start the transcoder.
	ErrProcessLaunch = errors.New("transcoder could not be started")
	// ErrProcessExit is returned when the transcoder exits non-zero.
	ErrProcessExit = errors.New("transcoder exited with an error")
	// ErrFormatNegotiation is returned when no PCM layout could be negotiated.
	ErrFormatNegotiation = errors.New("no compatible stream layout")
	// ErrOutputMissing is returned when a zero exit left no usable output.
	ErrOutputMissing = errors.New("output file missing or empty")
	// ErrSourceUnavailable is returned when the source cannot be read.
	ErrSourceUnavailable = errors.New("source file unavailable")
)

// SettingsError reports which field failed validation and why.
type SettingsError struct {
	Field  string
	Value  string
	Reason string
}

// Error formats the invalid field for UI and CLI output.
func (e *SettingsError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap exposes ErrInvalidSettings for errors.Is.
func (e *SettingsError) Unwrap() error {
	return ErrInvalidSettings
}

// ConversionError is a per-job failure with optional command context.
type ConversionError struct {
	Kind       domain.FailureKind `json:"kind"`
	Message    string             `json:"message"`
	CommandLog domain.CommandLog  `json:"commandLog"`
	Err        error              `json:"-"`
}

// Error formats conversion failures for logs and UI.
func (e *ConversionError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Kind,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *ConversionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
