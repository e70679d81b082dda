package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Auth errors (AUTH-001 to AUTH-099)
	ErrCodeAuthenticationFailed      ErrorCode = "AUTH-001"
	ErrCodeRegistrationFailed        ErrorCode = "AUTH-002"
	ErrCodeVerificationRequestFailed ErrorCode = "AUTH-003"
	ErrCodeProfileFetchFailed        ErrorCode = "AUTH-004"
	ErrCodeNoActiveSession           ErrorCode = "AUTH-005"
	ErrCodeInvalidRegistration       ErrorCode = "AUTH-006"

	// Event errors (EVENT-001 to EVENT-099)
	ErrCodeEventCreateFailed ErrorCode = "EVENT-001"
	ErrCodeEventListFailed   ErrorCode = "EVENT-002"
	ErrCodeEventDeleteFailed ErrorCode = "EVENT-003"
	ErrCodeEventInvalid      ErrorCode = "EVENT-004"

	// Session persistence errors (SESSION-001 to SESSION-099)
	ErrCodeSessionPersist     ErrorCode = "SESSION-001"
	ErrCodeSessionUnavailable ErrorCode = "SESSION-002"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"

	// Access errors (ACCESS-001 to ACCESS-099)
	ErrCodeAccessDenied ErrorCode = "ACCESS-001"
)

// Category returns the prefix of the code, e.g. "AUTH" for AUTH-001.
func (c ErrorCode) Category() string {
	s := string(c)
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}

// AppError represents an error with code, suggestions, and documentation
type AppError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	return b.String()
}

// Detailed renders the error together with its suggestions and docs link,
// for display at the edge of the CLI.
func (e *AppError) Detailed() string {
	var b strings.Builder
	b.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *AppError) WithDocs(url string) *AppError {
	e.DocsURL = url
	return e
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		appErr, ok := As(err)
		if !ok {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Common error constructors

// NewAuthenticationFailedError never carries server detail, so a caller cannot
// learn which of email or password was wrong.
func NewAuthenticationFailedError() *AppError {
	return New(ErrCodeAuthenticationFailed, "invalid email or password").
		WithSuggestion("Check your credentials and try again").
		WithSuggestion("Run 'eventctl auth register' if you do not have an account yet")
}

// NewRegistrationFailedError carries the server-supplied message when present.
func NewRegistrationFailedError(serverMsg string) *AppError {
	msg := "registration failed"
	if serverMsg != "" {
		msg = serverMsg
	}
	return New(ErrCodeRegistrationFailed, msg).
		WithSuggestion("Request a fresh code with 'eventctl auth send-code --email <email>'")
}

// NewVerificationRequestFailedError creates a send-code failure
func NewVerificationRequestFailedError(cause error) *AppError {
	return Wrap(ErrCodeVerificationRequestFailed, "could not request a verification code", cause).
		WithSuggestion("Check the email address and try again later")
}

// NewProfileFetchFailedError creates a profile retrieval failure
func NewProfileFetchFailedError(cause error) *AppError {
	return Wrap(ErrCodeProfileFetchFailed, "could not load the current user profile", cause)
}

// NewNoActiveSessionError creates an error for token-requiring operations
// attempted without a session
func NewNoActiveSessionError(operation string) *AppError {
	return New(ErrCodeNoActiveSession, fmt.Sprintf("%s requires an active session", operation)).
		WithSuggestion("Run 'eventctl auth login' first")
}

// NewInvalidRegistrationError creates a caller-side registration check failure
func NewInvalidRegistrationError(details string) *AppError {
	return New(ErrCodeInvalidRegistration, details)
}

// NewSessionPersistError creates a persistence write failure
func NewSessionPersistError(key string, cause error) *AppError {
	return Wrap(ErrCodeSessionPersist, fmt.Sprintf("failed to persist session key %q", key), cause).
		WithSuggestion("Check 'session.backend' and 'session.path' with 'eventctl config view'")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *AppError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Inspect the configuration with 'eventctl config view'")
}

// NewAccessDeniedError reports a gate denial at the CLI edge. loginRequired
// distinguishes "no session" from "wrong role".
func NewAccessDeniedError(view, reason string, loginRequired bool) *AppError {
	err := New(ErrCodeAccessDenied, fmt.Sprintf("%s: %s", view, reason))
	if loginRequired {
		return err.WithSuggestion("login required: run 'eventctl auth login'")
	}
	return err.WithSuggestion("Ask an administrator for a role that can open this view")
}

// NewSessionUnavailableError reports a session backend that could not be opened
func NewSessionUnavailableError(backend string, cause error) *AppError {
	return Wrap(ErrCodeSessionUnavailable, fmt.Sprintf("could not open the %s session backend", backend), cause).
		WithSuggestion("Use '--session-backend memory' for a throwaway session").
		WithSuggestion("Check the backend settings with 'eventctl config view'")
}
