package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/compactor/pkg/observability"
)

func newFilteredProvider(exporter *tracetest.InMemoryExporter) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter))),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
}

func spanAttrMap(span tracetest.SpanStub) map[string]any {
	out := make(map[string]any, len(span.Attributes))
	for _, kv := range span.Attributes {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}

	return out
}

func TestAttributeFilter_KeepsRunAttributes(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := newFilteredProvider(exporter)

	_, span := tp.Tracer("test").Start(context.Background(), "compactor.compress")
	span.SetAttributes(
		attribute.String("run.id", "abc"),
		attribute.Int("compactor.files", 3),
		attribute.String("mode", "compress"),
		attribute.String("error", "boom"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spanAttrMap(spans[0])
	assert.Equal(t, "abc", attrs["run.id"])
	assert.Equal(t, int64(3), attrs["compactor.files"])
	assert.Equal(t, "compress", attrs["mode"])
	assert.Equal(t, "boom", attrs["error"])
}

func TestAttributeFilter_StripsPathsAndUnknownKeys(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := newFilteredProvider(exporter)

	_, span := tp.Tracer("test").Start(context.Background(), "compactor.file")
	span.SetAttributes(
		attribute.String("file.path", `C:\Users\alice\secret.txt`),
		attribute.String("run.root", "/home/alice"),
		attribute.String("hostname", "box"),
		attribute.Int64("file.size", 42),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spanAttrMap(spans[0])
	assert.NotContains(t, attrs, "file.path")
	assert.NotContains(t, attrs, "run.root")
	assert.NotContains(t, attrs, "hostname")
	assert.Equal(t, int64(42), attrs["file.size"])
}

func TestFilteringTracerProvider_SuppressesFileSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	tracer := observability.NewFilteringTracerProvider(tp).Tracer(observability.TracerName)

	ctx, run := tracer.Start(context.Background(), "compactor.compress")
	_, file := tracer.Start(ctx, observability.SpanFile)

	assert.False(t, file.SpanContext().IsValid())

	file.End()
	run.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "compactor.compress", spans[0].Name)
}
