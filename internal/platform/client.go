// Package platform is the HTTP transport to the events backend.
//
// It knows the wire format (JSON bodies, bearer credentials, error envelopes)
// and nothing about sessions: callers pass the token to attach, if any.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/eventctl/internal/log"
	"github.com/felixgeelhaar/eventctl/internal/telemetry"
	"github.com/felixgeelhaar/eventctl/internal/version"
)

// DefaultTimeout applies when no timeout is configured
const DefaultTimeout = 30 * time.Second

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// Client is the events backend API client
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	logger     *log.Logger
}

// NewClient creates a new platform API client
func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.OrDefault(logger).WithGroup("http"),
	}
}

// Do performs a single request. The bearer credential is attached only when
// token is non-empty. Non-2xx responses are returned as *APIError; the body
// is decoded into target otherwise.
func (c *Client) Do(ctx context.Context, method, path, token string, body, target interface{}) (err error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	ctx, span := telemetry.StartRequestSpan(ctx, method, path, req.Header)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	req = req.WithContext(ctx)

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("User-Agent", version.GetInfo().UserAgent())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.String("request_id", requestID),
	)

	c.logger.DebugContext(ctx, "request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	return parseResponse(resp, requestID, target)
}

// parseResponse parses the response body into the target struct
func parseResponse(resp *http.Response, requestID string, target interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return newAPIError(resp.StatusCode, requestID, body)
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// DecodeError reports a 2xx response whose body did not match the expected shape
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
