package health

import (
	"context"
	"fmt"
	"net/http"
)

// FuncChecker adapts a function to the Checker interface.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) *Result
}

// NewFuncChecker creates a checker named name that runs fn.
func NewFuncChecker(name string, fn func(ctx context.Context) *Result) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

// Name returns the name of this health check.
func (c *FuncChecker) Name() string {
	return c.name
}

// Check runs the wrapped function.
func (c *FuncChecker) Check(ctx context.Context) *Result {
	return c.fn(ctx)
}

// HTTPChecker probes a URL. Any response proves reachability, so only
// transport failures are unhealthy and 5xx answers are degraded.
type HTTPChecker struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPChecker creates a checker that issues GET url. A nil client
// means http.DefaultClient.
func NewHTTPChecker(name, url string, client *http.Client) *HTTPChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPChecker{name: name, url: url, client: client}
}

// Name returns the name of this health check.
func (c *HTTPChecker) Name() string {
	return c.name
}

// Check performs the request.
func (c *HTTPChecker) Check(ctx context.Context) *Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Unhealthy(fmt.Sprintf("invalid url: %v", err)).WithDetail("url", c.url)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Unhealthy(fmt.Sprintf("unreachable: %v", err)).WithDetail("url", c.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Degraded(fmt.Sprintf("server error %d", resp.StatusCode)).
			WithDetail("url", c.url).
			WithDetail("status_code", resp.StatusCode)
	}
	return Healthy("reachable").
		WithDetail("url", c.url).
		WithDetail("status_code", resp.StatusCode)
}
