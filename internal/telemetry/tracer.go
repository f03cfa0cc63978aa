package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for staging spans. Generic keys follow OpenTelemetry
// semantic conventions, staging keys use the "stager." prefix.
const (
	AttrClientIP = "client.ip"
	AttrSubject  = "enduser.id"

	AttrOperation      = "stager.operation"
	AttrTaskID         = "stager.task_id"
	AttrTaskStatus     = "stager.task_status"
	AttrReplicaStatus  = "stager.replica_status"
	AttrStorageElement = "stager.storage_element"
	AttrRequestID      = "stager.request_id"
	AttrSource         = "stager.source"
	AttrRequested      = "stager.requested"
	AttrUpdated        = "stager.updated"
	AttrAgent          = "stager.agent"

	AttrBackend = "backend.type"
	AttrBucket  = "storage.bucket"
	AttrKey     = "storage.key"
)

// Span names. Format: <component>.<operation>
const (
	SpanCoordinator = "coordinator"
	SpanAgentCycle  = "agent.cycle"
	SpanBackend     = "backend"
	SpanNotify      = "notify.deliver"
)

func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

func TaskID(id string) attribute.KeyValue {
	return attribute.String(AttrTaskID, id)
}

func StorageElement(se string) attribute.KeyValue {
	return attribute.String(AttrStorageElement, se)
}

func RequestID(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

func Source(source string) attribute.KeyValue {
	return attribute.String(AttrSource, source)
}

// Requested records how many ids an operation was asked to change.
func Requested(n int) attribute.KeyValue {
	return attribute.Int(AttrRequested, n)
}

// Updated records how many ids an operation actually changed.
func Updated(n int) attribute.KeyValue {
	return attribute.Int(AttrUpdated, n)
}

func Agent(name string) attribute.KeyValue {
	return attribute.String(AttrAgent, name)
}

func Backend(kind string) attribute.KeyValue {
	return attribute.String(AttrBackend, kind)
}

func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StartCoordinatorSpan starts a span for a coordinator operation such as
// SubmitTask or MarkStageComplete.
func StartCoordinatorSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(AttrOperation, operation)}, attrs...)
	return StartSpan(ctx, SpanCoordinator+"."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(all...),
	)
}

// StartAgentSpan starts the root span of one polling cycle.
func StartAgentSpan(ctx context.Context, agent string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanAgentCycle,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(Agent(agent)),
	)
}

// StartBackendSpan starts a span for a call into a recall backend.
func StartBackendSpan(ctx context.Context, operation, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Backend(kind)}, attrs...)
	return StartSpan(ctx, SpanBackend+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(all...),
	)
}
