// Package observe provides application-wide observability primitives for
// Glimmer: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all Glimmer metrics.
const meterName = "github.com/glimmervoice/glimmer"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TimeToFirstAudio tracks the turn's headline metric: capture end to the
	// first synthesized sample reaching the output device.
	TimeToFirstAudio metric.Float64Histogram

	// TurnDuration tracks full turn latency, capture end to playback done.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// Turns counts completed conversation turns. Use with attribute:
	//   attribute.String("status", "ok"|"error"|"cancelled")
	Turns metric.Int64Counter

	// DroppedFrames counts synthesized audio frames discarded as undecodable.
	DroppedFrames metric.Int64Counter

	// --- Gauges ---

	// ActiveTurns tracks the number of turns currently in flight.
	ActiveTurns metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
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
	if met.STTDuration, err = m.Float64Histogram("glimmer.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TimeToFirstAudio, err = m.Float64Histogram("glimmer.turn.time_to_first_audio",
		metric.WithDescription("Delay from end of capture to the first audible sample."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("glimmer.turn.duration",
		metric.WithDescription("Full turn latency from end of capture to end of playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Turns, err = m.Int64Counter("glimmer.turns",
		metric.WithDescription("Total conversation turns by status."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("glimmer.audio.dropped_frames",
		metric.WithDescription("Total synthesized audio frames dropped as undecodable."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveTurns, err = m.Int64UpDownCounter("glimmer.active_turns",
		metric.WithDescription("Number of conversation turns currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("glimmer.http.request.duration",
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

// RecordTurn is a convenience method that records a completed turn with its
// outcome status.
func (m *Metrics) RecordTurn(ctx context.Context, status string) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordDroppedFrames adds n to the dropped-frame counter.
func (m *Metrics) RecordDroppedFrames(ctx context.Context, n int64) {
	if n > 0 {
		m.DroppedFrames.Add(ctx, n)
	}
}
