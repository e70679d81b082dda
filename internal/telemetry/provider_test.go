package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitProviderDisabled(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, isNoop := GetTracerProvider().(noop.TracerProvider)
	assert.True(t, isNoop)
	assert.NoError(t, Shutdown(context.Background()))
}

func TestInitProviderEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = "http://127.0.0.1:4318"
	cfg.SampleRate = 0.5

	shutdown, err := InitProvider(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = shutdown(ctx)
		_, _ = InitProvider(context.Background(), DefaultConfig())
	})

	_, isSDK := GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, isSDK)
}

type failingExporter struct {
	calls int
}

func (f *failingExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	f.calls++
	return errors.New("collector down")
}

func (f *failingExporter) Shutdown(context.Context) error { return nil }

func TestGuardedExporterOpensAfterFailures(t *testing.T) {
	inner := &failingExporter{}
	g := newGuardedExporter(inner)

	for i := 0; i < 3; i++ {
		assert.Error(t, g.ExportSpans(context.Background(), nil))
	}
	err := g.ExportSpans(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, 3, inner.calls)
}

func TestCircuitBreakerResets(t *testing.T) {
	cb := newCircuitBreaker()
	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure()
	}
	assert.False(t, cb.allow())

	cb.resetTimeout = time.Millisecond
	time.Sleep(5 * time.Millisecond)
	assert.True(t, cb.allow())

	cb.recordSuccess()
	assert.Equal(t, 0, cb.failureCount)
}
