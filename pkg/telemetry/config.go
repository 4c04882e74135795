// Package telemetry wires OpenTelemetry distributed tracing for depot,
// trimmed from the teacher's internal/telemetry to the spans a storage
// library actually produces: driver operations and HTTP serving, not
// protocol adapters.
package telemetry

// Config controls tracer initialization.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// Endpoint, when set, is an OTLP collector endpoint a future exporter
	// could target. No exporter transport ships by default (see package
	// doc); this field is preserved so config files written against this
	// schema keep validating if an exporter is wired in later.
	Endpoint   string
	Insecure   bool
	SampleRate float64
}

// DefaultConfig returns a disabled Config with storage-library defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "depot",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
