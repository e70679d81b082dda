package exitcode

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"

	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage or configuration
	UsageError = 2

	// AuthError indicates an authentication failure or missing session
	AuthError = 5

	// NetworkError indicates the backend could not be reached
	NetworkError = 6

	// AccessDenied indicates the access gate refused a view
	AccessDenied = 7

	// Interrupted indicates the command was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code. Transport failures win
// over the coded error wrapping them.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if errors.Is(err, context.Canceled) {
		return Interrupted
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return NetworkError
	}

	if appErr, ok := apperrors.As(err); ok {
		switch appErr.Code.Category() {
		case "AUTH":
			return AuthError
		case "ACCESS":
			return AccessDenied
		case "CONFIG":
			return UsageError
		}
		return GeneralError
	}

	// cobra reports usage problems as plain errors
	errMsg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"invalid argument",
		"required flag",
		"accepts ",
		"requires at least",
		"flag needs an argument",
	} {
		if strings.Contains(errMsg, marker) {
			return UsageError
		}
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or configuration)"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case AccessDenied:
		return "Access denied"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
