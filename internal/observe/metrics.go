// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, structured logging helpers, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so metrics can be scraped
// from the standard /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all voicemate metrics.
const meterName = "github.com/voicemate/voicemate"

// Metrics holds all OpenTelemetry metric instruments for the voice pipeline.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SessionStartDuration tracks how long opening a recognition session
	// takes, by engine.
	SessionStartDuration metric.Float64Histogram

	// MuteDuration tracks how long the microphone stays muted for one
	// spoken-feedback utterance.
	MuteDuration metric.Float64Histogram

	// SpeakDuration tracks text-to-speech playback latency.
	SpeakDuration metric.Float64Histogram

	// --- Counters ---

	// Resolutions counts resolver outcomes. Attributes:
	//   outcome ∈ {resolved, ambiguous, unmatched}, lane.
	Resolutions metric.Int64Counter

	// Transcripts counts transcript dispositions. Attribute:
	//   status ∈ {delivered, dropped_short, dropped_muted}.
	Transcripts metric.Int64Counter

	// Disambiguations counts disambiguation window closures. Attribute:
	//   result ∈ {resolved, expired, cancelled}.
	Disambiguations metric.Int64Counter

	// StateTransitions counts coordinator state changes. Attributes: from, to.
	StateTransitions metric.Int64Counter

	// EngineErrors counts recognition/synthesis engine failures.
	// Attributes: engine, kind.
	EngineErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks live recognition sessions (0 or 1 in practice).
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SessionStartDuration, err = m.Float64Histogram("voicemate.session.start.duration",
		metric.WithDescription("Latency of opening a recognition session, by engine."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MuteDuration, err = m.Float64Histogram("voicemate.session.mute.duration",
		metric.WithDescription("Duration the microphone stays muted per spoken utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeakDuration, err = m.Float64Histogram("voicemate.tts.speak.duration",
		metric.WithDescription("Latency of text-to-speech playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Resolutions, err = m.Int64Counter("voicemate.resolver.outcomes",
		metric.WithDescription("Resolver outcomes by outcome kind and lane."),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("voicemate.transcripts",
		metric.WithDescription("Transcript dispositions (delivered or dropped)."),
	); err != nil {
		return nil, err
	}
	if met.Disambiguations, err = m.Int64Counter("voicemate.disambiguations",
		metric.WithDescription("Disambiguation window closures by result."),
	); err != nil {
		return nil, err
	}
	if met.StateTransitions, err = m.Int64Counter("voicemate.session.transitions",
		metric.WithDescription("Coordinator state transitions by from/to state."),
	); err != nil {
		return nil, err
	}
	if met.EngineErrors, err = m.Int64Counter("voicemate.engine.errors",
		metric.WithDescription("Recognition and synthesis engine failures."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("voicemate.active_sessions",
		metric.WithDescription("Number of live recognition sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voicemate.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics], creating it on first
// call from [otel.GetMeterProvider]. Subsequent calls return the same
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

// RecordResolution records one resolver outcome.
func (m *Metrics) RecordResolution(ctx context.Context, outcome, lane string) {
	m.Resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("lane", lane),
	))
}

// RecordTranscript records one transcript disposition.
func (m *Metrics) RecordTranscript(ctx context.Context, status string) {
	m.Transcripts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordDisambiguation records one disambiguation window closure.
func (m *Metrics) RecordDisambiguation(ctx context.Context, result string) {
	m.Disambiguations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordStateTransition records one coordinator state change.
func (m *Metrics) RecordStateTransition(ctx context.Context, from, to string) {
	m.StateTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordEngineError records one engine failure.
func (m *Metrics) RecordEngineError(ctx context.Context, engine, kind string) {
	m.EngineErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("kind", kind),
	))
}

// RecordSessionStart records the latency of one session start attempt.
func (m *Metrics) RecordSessionStart(ctx context.Context, engine string, d time.Duration) {
	m.SessionStartDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("engine", engine),
	))
}

// RecordMute records the length of one mute window.
func (m *Metrics) RecordMute(ctx context.Context, d time.Duration) {
	m.MuteDuration.Record(ctx, d.Seconds())
}

// RecordSpeak records the latency of one spoken utterance.
func (m *Metrics) RecordSpeak(ctx context.Context, d time.Duration) {
	m.SpeakDuration.Record(ctx, d.Seconds())
}
