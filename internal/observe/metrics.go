// Package observe provides application-wide observability primitives for
// Wordwire: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Wordwire metrics.
const meterName = "github.com/MrWong99/wordwire"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TranslateDuration tracks machine-translation latency.
	TranslateDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// VoiceCycleDuration tracks end-to-end voice cycle latency, from an
	// aggregated utterance entering the pipeline to translated audio leaving
	// it.
	VoiceCycleDuration metric.Float64Histogram

	// --- Counters ---

	// EventsDispatched counts gateway events. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	EventsDispatched metric.Int64Counter

	// MessagesRouted counts routed chat messages. Use with attribute:
	//   attribute.String("outcome", ...)
	MessagesRouted metric.Int64Counter

	// Translations counts translation attempts. Use with attribute:
	//   attribute.String("outcome", ...) — translated, skipped, or failed.
	Translations metric.Int64Counter

	// VoiceCycles counts completed voice pipeline cycles. Use with attribute:
	//   attribute.String("outcome", ...)
	VoiceCycles metric.Int64Counter

	// PersistenceRetries counts retried persistence attempts. Use with
	// attribute: attribute.String("op", ...)
	PersistenceRetries metric.Int64Counter

	// EmergencySaves counts messages written through the emergency save path
	// after the normal save exhausted its retries.
	EmergencySaves metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ConnectedUsers tracks the number of users with a live registered
	// connection.
	ConnectedUsers metric.Int64UpDownCounter

	// VoiceCyclesInFlight tracks the number of voice pipeline cycles currently
	// running.
	VoiceCyclesInFlight metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for speech-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("wordwire.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslateDuration, err = m.Float64Histogram("wordwire.translate.duration",
		metric.WithDescription("Latency of machine translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("wordwire.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.VoiceCycleDuration, err = m.Float64Histogram("wordwire.voice.duration",
		metric.WithDescription("End-to-end voice cycle latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.EventsDispatched, err = m.Int64Counter("wordwire.events.dispatched",
		metric.WithDescription("Total gateway events by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.MessagesRouted, err = m.Int64Counter("wordwire.messages.routed",
		metric.WithDescription("Total routed chat messages by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Translations, err = m.Int64Counter("wordwire.translations",
		metric.WithDescription("Total translation attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.VoiceCycles, err = m.Int64Counter("wordwire.voice.cycles",
		metric.WithDescription("Total voice pipeline cycles by outcome."),
	); err != nil {
		return nil, err
	}
	if met.PersistenceRetries, err = m.Int64Counter("wordwire.persistence.retries",
		metric.WithDescription("Total retried persistence attempts by operation."),
	); err != nil {
		return nil, err
	}
	if met.EmergencySaves, err = m.Int64Counter("wordwire.persistence.emergency_saves",
		metric.WithDescription("Total messages written through the emergency save path."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("wordwire.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ConnectedUsers, err = m.Int64UpDownCounter("wordwire.connected_users",
		metric.WithDescription("Number of users with a live registered connection."),
	); err != nil {
		return nil, err
	}
	if met.VoiceCyclesInFlight, err = m.Int64UpDownCounter("wordwire.voice.inflight",
		metric.WithDescription("Number of voice pipeline cycles currently running."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("wordwire.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordEvent is a convenience method that records a dispatched gateway event
// with the standard attribute set.
func (m *Metrics) RecordEvent(ctx context.Context, kind, status string) {
	m.EventsDispatched.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordMessageRouted is a convenience method that records a routed message
// counter increment.
func (m *Metrics) RecordMessageRouted(ctx context.Context, outcome string) {
	m.MessagesRouted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordTranslation is a convenience method that records a translation attempt.
// outcome is one of "translated", "skipped", or "failed".
func (m *Metrics) RecordTranslation(ctx context.Context, outcome string) {
	m.Translations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordVoiceCycle is a convenience method that records a completed voice
// pipeline cycle.
func (m *Metrics) RecordVoiceCycle(ctx context.Context, outcome string) {
	m.VoiceCycles.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordRetry is a convenience method that records one retried persistence
// attempt for op.
func (m *Metrics) RecordRetry(ctx context.Context, op string) {
	m.PersistenceRetries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}

// RecordEmergencySave is a convenience method that records one emergency save.
func (m *Metrics) RecordEmergencySave(ctx context.Context) {
	m.EmergencySaves.Add(ctx, 1)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
