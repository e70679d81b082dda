package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorResponse is the backend error envelope, e.g.
// {"status": 400, "msg": "code expired", "timestamp": "..."}.
type ErrorResponse struct {
	Status    int    `json:"status"`
	Msg       string `json:"msg"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
	Timestamp  string
	RequestID  string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		return fmt.Sprintf("API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, msg)
}

func newAPIError(status int, requestID string, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		RequestID:  requestID,
		Body:       string(body),
	}

	var envelope ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Msg != "":
			apiErr.Message = envelope.Msg
		case envelope.Message != "":
			apiErr.Message = envelope.Message
		case envelope.Error != "":
			apiErr.Message = envelope.Error
		}
		apiErr.Timestamp = envelope.Timestamp
	}

	return apiErr
}

// ServerMessage returns the backend-supplied message carried by err, if any.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
