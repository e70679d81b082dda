package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeEventInvalid, "test error message")

	if err.Code != ErrCodeEventInvalid {
		t.Errorf("expected code %s, got %s", ErrCodeEventInvalid, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeSessionPersist, "failed to write session", cause)

	if err.Code != ErrCodeSessionPersist {
		t.Errorf("expected code %s, got %s", ErrCodeSessionPersist, err.Code)
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeEventInvalid, "title is required"),
			wantCode: "EVENT-004",
			wantMsg:  "title is required",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeSessionPersist, "write failed", fmt.Errorf("permission denied")),
			wantCode: "SESSION-001",
			wantMsg:  "permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}

			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain message '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestDetailed(t *testing.T) {
	err := New(ErrCodeNoActiveSession, "no session").
		WithSuggestions("first", "second").
		WithDocs("https://example.com/docs")

	out := err.Detailed()
	if !strings.Contains(out, "Suggestions:") || !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Errorf("detailed output missing suggestions: %s", out)
	}
	if !strings.Contains(out, "Documentation: https://example.com/docs") {
		t.Errorf("detailed output missing docs: %s", out)
	}
	if strings.Contains(err.Error(), "Suggestions") {
		t.Errorf("Error() should stay on one line, got: %s", err.Error())
	}
}

func TestHasCode(t *testing.T) {
	inner := NewProfileFetchFailedError(fmt.Errorf("boom"))
	outer := fmt.Errorf("dashboard: %w", inner)

	if !HasCode(outer, ErrCodeProfileFetchFailed) {
		t.Error("expected HasCode to find wrapped code")
	}
	if HasCode(outer, ErrCodeAuthenticationFailed) {
		t.Error("unexpected match on unrelated code")
	}
	if HasCode(fmt.Errorf("plain"), ErrCodeAuthenticationFailed) {
		t.Error("plain errors carry no code")
	}
	if HasCode(nil, ErrCodeAuthenticationFailed) {
		t.Error("nil carries no code")
	}

	nested := Wrap(ErrCodeSessionPersist, "outer", NewNoActiveSessionError("x"))
	if !HasCode(nested, ErrCodeNoActiveSession) {
		t.Error("expected HasCode to walk nested AppErrors")
	}
}

func TestCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeAuthenticationFailed: "AUTH",
		ErrCodeEventListFailed:      "EVENT",
		ErrCodeSessionPersist:       "SESSION",
		ErrCodeConfigInvalid:        "CONFIG",
		ErrorCode("odd"):            "odd",
	}
	for code, want := range tests {
		if got := code.Category(); got != want {
			t.Errorf("Category(%s) = %s, want %s", code, got, want)
		}
	}
}

func TestNewAuthenticationFailedError(t *testing.T) {
	err := NewAuthenticationFailedError()

	if err.Code != ErrCodeAuthenticationFailed {
		t.Errorf("expected code %s, got %s", ErrCodeAuthenticationFailed, err.Code)
	}
	if err.Cause != nil {
		t.Error("authentication failures must not carry server detail")
	}
	if len(err.Suggestions) == 0 {
		t.Error("expected suggestions")
	}
}

func TestNewRegistrationFailedError(t *testing.T) {
	withMsg := NewRegistrationFailedError("email already taken")
	if withMsg.Message != "email already taken" {
		t.Errorf("expected server message, got %q", withMsg.Message)
	}

	generic := NewRegistrationFailedError("")
	if generic.Message != "registration failed" {
		t.Errorf("expected generic message, got %q", generic.Message)
	}
}

func TestNewNoActiveSessionError(t *testing.T) {
	err := NewNoActiveSessionError("event creation")
	if !strings.Contains(err.Message, "event creation") {
		t.Errorf("message should name the operation, got %q", err.Message)
	}
}

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		ErrCodeAuthenticationFailed,
		ErrCodeRegistrationFailed,
		ErrCodeVerificationRequestFailed,
		ErrCodeProfileFetchFailed,
		ErrCodeNoActiveSession,
		ErrCodeInvalidRegistration,
		ErrCodeEventCreateFailed,
		ErrCodeEventListFailed,
		ErrCodeEventDeleteFailed,
		ErrCodeEventInvalid,
		ErrCodeSessionPersist,
		ErrCodeSessionUnavailable,
		ErrCodeConfigInvalid,
		ErrCodeAccessDenied,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("duplicate error code: %s", code)
		}
		seen[code] = true
	}
}

func TestNewAccessDeniedError(t *testing.T) {
	login := NewAccessDeniedError("events", "no active session", true)
	if login.Code != ErrCodeAccessDenied || login.Code.Category() != "ACCESS" {
		t.Errorf("unexpected code %s", login.Code)
	}
	if !strings.Contains(login.Detailed(), "login required") {
		t.Errorf("expected login hint, got %q", login.Detailed())
	}

	role := NewAccessDeniedError("create-event", "role not permitted", false)
	if strings.Contains(role.Detailed(), "login required") {
		t.Errorf("role denial should not ask for login, got %q", role.Detailed())
	}
}

func TestNewSessionUnavailableError(t *testing.T) {
	err := NewSessionUnavailableError("redis", fmt.Errorf("dial tcp: refused"))
	if !HasCode(err, ErrCodeSessionUnavailable) {
		t.Errorf("unexpected code %s", err.Code)
	}
	if !strings.Contains(err.Error(), "redis") {
		t.Errorf("message should name the backend, got %q", err.Error())
	}
}
