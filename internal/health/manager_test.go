package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChecker is a test double for health checks
type mockChecker struct {
	name   string
	result *Result
	delay  time.Duration
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) *Result {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return Unhealthy("check cancelled").
				WithDetail("error", ctx.Err().Error())
		}
	}
	return m.result
}

func TestManagerCheck(t *testing.T) {
	manager := NewManager()
	manager.AddChecker(&mockChecker{name: "api", result: Healthy("reachable")})
	manager.AddChecker(&mockChecker{name: "session", result: Degraded("expired")})

	results := manager.Check(context.Background())

	require.Len(t, results, 2)
	assert.Equal(t, StatusHealthy, results["api"].Status)
	assert.Equal(t, StatusDegraded, results["session"].Status)
	assert.Equal(t, []string{"api", "session"}, manager.CheckNames())
}

func TestManagerTimeout(t *testing.T) {
	manager := NewManager().WithTimeout(20 * time.Millisecond)
	manager.AddChecker(&mockChecker{name: "slow", result: Healthy("late"), delay: time.Second})

	start := time.Now()
	results := manager.Check(context.Background())

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), results["slow"].Details["error"])
}

func TestManagerNilResult(t *testing.T) {
	manager := NewManager()
	manager.AddChecker(&mockChecker{name: "broken"})

	results := manager.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, results["broken"].Status)
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]*Result
		want    Status
	}{
		{name: "empty", results: nil, want: StatusHealthy},
		{name: "all healthy", results: map[string]*Result{"a": Healthy(""), "b": Healthy("")}, want: StatusHealthy},
		{name: "one degraded", results: map[string]*Result{"a": Healthy(""), "b": Degraded("")}, want: StatusDegraded},
		{name: "unhealthy wins", results: map[string]*Result{"a": Degraded(""), "b": Unhealthy("")}, want: StatusUnhealthy},
	}

	manager := NewManager()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, manager.OverallStatus(tt.results))
		})
	}
}

func TestResultBuilders(t *testing.T) {
	r := Unhealthy("down").WithDetail("url", "http://x").WithLatency(time.Second)

	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Equal(t, "down", r.Message)
	assert.Equal(t, "http://x", r.Details["url"])
	assert.Equal(t, time.Second, r.Latency)
	assert.Equal(t, "unhealthy", r.Status.String())
}

func TestFuncChecker(t *testing.T) {
	c := NewFuncChecker("session", func(ctx context.Context) *Result {
		return Healthy("active")
	})

	assert.Equal(t, "session", c.Name())
	assert.Equal(t, "active", c.Check(context.Background()).Message)
}

func TestHTTPChecker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name string
		url  string
		want Status
	}{
		{name: "ok", url: ts.URL + "/", want: StatusHealthy},
		{name: "client error still reachable", url: ts.URL + "/missing", want: StatusHealthy},
		{name: "server error", url: ts.URL + "/broken", want: StatusDegraded},
		{name: "connection refused", url: closedURL, want: StatusUnhealthy},
		{name: "bad url", url: "://nope", want: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewHTTPChecker("api", tt.url, &http.Client{Timeout: time.Second})
			result := c.Check(context.Background())
			assert.Equal(t, tt.want, result.Status, result.Message)
			assert.Equal(t, tt.url, result.Details["url"])
		})
	}
}
