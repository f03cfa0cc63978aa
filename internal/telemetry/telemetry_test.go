package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useRecorder installs an in-memory span recorder as the global tracer for
// the duration of a test.
func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	prev, prevEnabled := tracer, enabled
	tracer, enabled = tp.Tracer("test"), true
	t.Cleanup(func() {
		tracer, enabled = prev, prevEnabled
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "stager", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.False(t, cfg.Profiling.Enabled)
	assert.Contains(t, cfg.Profiling.ProfileTypes, "cpu")
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	_, span := StartSpan(ctx, "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestCoordinatorSpan(t *testing.T) {
	rec := useRecorder(t)

	ctx, span := StartCoordinatorSpan(context.Background(), "SubmitTask", Source("reco"), Requested(3))
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))
	SetAttributes(ctx, Updated(2))
	RecordError(ctx, errors.New("boom"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "coordinator.SubmitTask", got.Name())
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Contains(t, got.Attributes(), attribute.String(AttrOperation, "SubmitTask"))
	assert.Contains(t, got.Attributes(), attribute.String(AttrSource, "reco"))
	assert.Contains(t, got.Attributes(), attribute.Int(AttrUpdated, 2))
	require.Len(t, got.Events(), 1)
}

func TestAgentAndBackendSpans(t *testing.T) {
	rec := useRecorder(t)

	ctx, root := StartAgentSpan(context.Background(), "submit")
	_, child := StartBackendSpan(ctx, "SubmitRecall", "s3", Bucket("archive"), RequestID("req-1"))
	AddEvent(ctx, "selected", StorageElement("SE-A"))
	child.End()
	root.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "backend.SubmitRecall", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Contains(t, spans[0].Attributes(), attribute.String(AttrBackend, "s3"))
	assert.Equal(t, "agent.cycle", spans[1].Name())
	assert.Contains(t, spans[1].Attributes(), attribute.String(AttrAgent, "submit"))
}

func TestHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	require.NotPanics(t, func() {
		AddEvent(ctx, "event")
		RecordError(ctx, nil)
		SetStatus(ctx, codes.Ok, "")
		SetAttributes(ctx, TaskID("t"))
	})
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
	assert.NotNil(t, SpanFromContext(ctx))
}

func TestProfiling(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		shutdown, err := InitProfiling(ProfilingConfig{})
		require.NoError(t, err)
		assert.NoError(t, shutdown())
		assert.False(t, IsProfilingEnabled())
	})

	t.Run("profile types", func(t *testing.T) {
		for name := range profileTypes {
			_, err := parseProfileType(name)
			assert.NoError(t, err, name)
		}
		_, err := parseProfileType("heap")
		assert.Error(t, err)
	})

	t.Run("unknown profile type fails init", func(t *testing.T) {
		_, err := InitProfiling(ProfilingConfig{Enabled: true, ProfileTypes: []string{"heap"}})
		assert.Error(t, err)
	})
}
