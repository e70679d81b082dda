package ux

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError adds a suggestion to errors that do not carry their own.
// Coded errors are returned unchanged.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	var withSuggestion *ErrorWithSuggestion
	if errors.As(err, &withSuggestion) {
		return err
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		return NewErrorWithSuggestion(err,
			"Check api.base_url with 'eventctl config get api.base_url', or start a local backend with 'eventctl stub-server'")
	case strings.Contains(errMsg, "x509") || strings.Contains(errMsg, "certificate"):
		return NewErrorWithSuggestion(err,
			"The backend's TLS certificate was rejected; verify the URL uses the right host")
	case strings.Contains(errMsg, "deadline exceeded") || strings.Contains(errMsg, "timeout"):
		return NewErrorWithSuggestion(err,
			"The backend did not answer in time; raise api.timeout or retry later")
	case strings.Contains(errMsg, "permission denied"):
		return NewErrorWithSuggestion(err,
			"Check permissions on ~/.eventctl and the configured session.path")
	case strings.Contains(errMsg, "unknown command") || strings.Contains(errMsg, "unknown flag"):
		return NewErrorWithSuggestion(err,
			"Run 'eventctl --help' to list commands and flags")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}

// RenderError returns the text printed for err at the CLI edge: coded
// errors with their suggestions, everything else enhanced.
func RenderError(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := apperrors.As(err); ok {
		detailed := appErr.Detailed()
		if outer := err.Error(); outer != appErr.Error() {
			prefix := strings.TrimSuffix(outer, appErr.Error())
			return prefix + detailed
		}
		return detailed
	}
	return EnhanceError(err).Error()
}
