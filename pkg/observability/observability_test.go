package observability

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	mu.Lock()
	tracer = nil
	mu.Unlock()
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestTraceRecordsErrors(t *testing.T) {
	recorder := withRecorder(t)
	ctx := context.Background()

	if err := Trace(ctx, "dataset.add_file", func(context.Context) error { return nil },
		attribute.String("path", "run1.parquet")); err != nil {
		t.Fatalf("Trace returned unexpected error: %v", err)
	}

	testError := errors.New("test error")
	if err := Trace(ctx, "writer.close", func(context.Context) error { return testError }); err != testError {
		t.Errorf("Trace should return the original error: got %v, want %v", err, testError)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "dataset.add_file" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("failed span should carry error status, got %v", spans[1].Status().Code)
	}
}

func TestSpanAttributes(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), "dataset.entries")
	span.SetAttribute("rows", int64(15))
	span.SetAttribute("dataset", "DecayTree")
	span.SetAttribute("ratio", 0.5)
	span.SetAttribute("files", []string{"a", "b"})
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		got[kv.Key] = kv.Value
	}
	if got["rows"].AsInt64() != 15 {
		t.Errorf("rows attribute = %v", got["rows"])
	}
	if got["files"].AsString() != "[a b]" {
		t.Errorf("files attribute = %v", got["files"])
	}
}

func TestInitializeDisabledIsNoop(t *testing.T) {
	if err := Initialize(DefaultConfig()); err != nil {
		t.Fatalf("Initialize with tracing disabled failed: %v", err)
	}
	if Tracer() == nil {
		t.Error("Tracer should never be nil")
	}
}

func TestInitializeWritesToFile(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = true
	config.Output = filepath.Join(t.TempDir(), "spans.json")

	if err := Initialize(config); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	_, span := StartSpan(context.Background(), "test")
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	mu.Lock()
	tracer = nil
	mu.Unlock()
}

func TestUnknownExporter(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = true
	config.ExporterType = "jaeger"
	if err := Initialize(config); err == nil {
		t.Error("expected an error for an unknown exporter")
	}
}
