package exitcode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"AuthError", AuthError, 5},
		{"NetworkError", NetworkError, 6},
		{"AccessDenied", AccessDenied, 7},
		{"Interrupted", Interrupted, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	dialErr := &url.Error{Op: "Post", URL: "http://localhost:1", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: Success,
		},
		{
			name:     "authentication failure",
			err:      apperrors.NewAuthenticationFailedError(),
			expected: AuthError,
		},
		{
			name:     "no active session",
			err:      fmt.Errorf("events list: %w", apperrors.NewNoActiveSessionError("listing events")),
			expected: AuthError,
		},
		{
			name:     "access denied",
			err:      apperrors.NewAccessDeniedError("create-event", "role not permitted", false),
			expected: AccessDenied,
		},
		{
			name:     "invalid config",
			err:      apperrors.NewConfigInvalidError("bad url"),
			expected: UsageError,
		},
		{
			name:     "event failure",
			err:      apperrors.New(apperrors.ErrCodeEventCreateFailed, "nope"),
			expected: GeneralError,
		},
		{
			name:     "network failure inside coded error",
			err:      apperrors.Wrap(apperrors.ErrCodeEventListFailed, "could not load events", dialErr),
			expected: NetworkError,
		},
		{
			name:     "deadline exceeded",
			err:      fmt.Errorf("request: %w", context.DeadlineExceeded),
			expected: NetworkError,
		},
		{
			name:     "cancelled",
			err:      fmt.Errorf("request: %w", context.Canceled),
			expected: Interrupted,
		},
		{
			name:     "cobra unknown command",
			err:      errors.New(`unknown command "foo" for "eventctl"`),
			expected: UsageError,
		},
		{
			name:     "cobra arg count",
			err:      errors.New("accepts 1 arg(s), received 0"),
			expected: UsageError,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: GeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{AuthError, "Authentication error"},
		{AccessDenied, "Access denied"},
		{Interrupted, "Interrupted"},
		{99, "Unknown error"},
	}

	for _, tt := range tests {
		if got := GetExitCodeDescription(tt.code); got != tt.expected {
			t.Errorf("GetExitCodeDescription(%d) = %q, want %q", tt.code, got, tt.expected)
		}
	}
}
