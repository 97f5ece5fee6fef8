package observe

import "errors"

// Sampling bounds for TracingConfig.SamplePct.
const (
	MinSamplePct = 0.0
	MaxSamplePct = 1.0
)

var (
	// ErrMissingServiceName reports a Config without a service name.
	ErrMissingServiceName = errors.New("observe: service name is required")

	// ErrInvalidSamplePct reports a sampling percentage outside
	// [MinSamplePct, MaxSamplePct].
	ErrInvalidSamplePct = errors.New("observe: sample percentage must be between 0.0 and 1.0")

	// ErrInvalidTracingExporter reports a tracing exporter name
	// Validate does not recognize.
	ErrInvalidTracingExporter = errors.New("observe: unknown tracing exporter")

	// ErrInvalidMetricsExporter reports a metrics exporter name
	// Validate does not recognize.
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")

	// ErrInvalidLogLevel reports a log level other than debug, info,
	// warn, or error.
	ErrInvalidLogLevel = errors.New("observe: unknown log level")

	// ErrNilObserver reports a nil Observer handed to a constructor.
	ErrNilObserver = errors.New("observe: observer is nil")

	// ErrMissingOpName reports an OpMeta without a name.
	ErrMissingOpName = errors.New("observe: operation name is required")
)
