package telemetry

// Config holds configuration for the tracer
type Config struct {
	// ServiceName is the name reported on every span
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled determines whether tracing is enabled.
	// When false, a noop tracer is used
	Enabled bool

	// Endpoint is the OTLP/HTTP collector URL, e.g. http://localhost:4318.
	// If empty, spans are recorded but not exported
	Endpoint string

	// SampleRate is the fraction of traces to sample (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns the configuration used when nothing is set.
// Tracing is disabled by default for a CLI tool
func DefaultConfig() Config {
	return Config{
		ServiceName:    "eventctl",
		ServiceVersion: "dev",
		Enabled:        false,
		SampleRate:     1.0,
	}
}
