// Package observability provides OpenTelemetry tracing for strata.
//
// Library code always calls Tracer, which falls back to the global no-op
// provider until Initialize installs a real one, so spans cost nothing in
// programs that never turn tracing on.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/strata"

var (
	mu     sync.RWMutex
	tracer trace.Tracer
	meter  metric.Meter

	durations metric.Float64Histogram
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	ServiceName    string        `yaml:"service_name" json:"service_name"`
	ServiceVersion string        `yaml:"service_version" json:"service_version"`
	Environment    string        `yaml:"environment" json:"environment"`
	SamplingRate   float64       `yaml:"sampling_rate" json:"sampling_rate"`
	ExporterType   string        `yaml:"exporter" json:"exporter"` // "stdout" or "none"
	Output         string        `yaml:"output" json:"output"`     // "stderr", "stdout" or a file path
	BatchTimeout   time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	MaxExportBatch int           `yaml:"max_export_batch" json:"max_export_batch"`
	MaxQueueSize   int           `yaml:"max_queue_size" json:"max_queue_size"`
}

// Initialize installs a tracer provider built from config. Calling it with
// tracing disabled is a no-op.
func Initialize(config TracingConfig) error {
	if !config.Enabled {
		return nil
	}
	tp, err := newTracerProvider(config)
	if err != nil {
		return err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	mu.Lock()
	tracer = tp.Tracer(instrumentationName)
	mu.Unlock()
	return nil
}

// Tracer returns the installed tracer or the global provider's.
func Tracer() trace.Tracer {
	mu.RLock()
	t := tracer
	mu.RUnlock()
	if t != nil {
		return t
	}
	return otel.Tracer(instrumentationName)
}

// Meter returns the global meter. Span durations are recorded through it.
func Meter() metric.Meter {
	mu.Lock()
	defer mu.Unlock()
	if meter == nil {
		meter = otel.Meter(instrumentationName)
		durations, _ = meter.Float64Histogram("strata.operation.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of traced dataset operations"))
	}
	return meter
}

// Span wraps a trace span and records its duration on End.
type Span struct {
	span       trace.Span
	name       string
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartSpan starts a span named operation.
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operation, trace.WithAttributes(attrs...))
	return ctx, &Span{
		span:      span,
		name:      operation,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span. Attributes are flushed on End.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Fail records err on the span. A nil error is ignored.
func (s *Span) Fail(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End ends the span and records its duration.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}

	Meter()
	mu.RLock()
	h := durations
	mu.RUnlock()
	if h != nil {
		h.Record(context.Background(), time.Since(s.startTime).Seconds(),
			metric.WithAttributes(attribute.String("operation", s.name)))
	}

	s.span.End()
}

// Trace runs fn inside a span named operation and records its error.
func Trace(ctx context.Context, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := StartSpan(ctx, operation, attrs...)
	defer span.End()

	err := fn(ctx)
	span.Fail(err)
	return err
}
