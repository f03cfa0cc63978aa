package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that staging
// activity can be correlated by task, replica and request in aggregated logs.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Staging Records
	// ========================================================================
	KeyTaskID         = "task_id"         // Stage task identifier
	KeyReplicaID      = "replica_id"      // Cache replica identifier
	KeyStorageElement = "storage_element" // Storage element holding the replica
	KeyLFN            = "lfn"             // Logical file name
	KeyPFN            = "pfn"             // Physical file name
	KeyRequestID      = "request_id"      // External stage request identifier
	KeyStatus         = "status"          // Task, replica or stage status
	KeyReason         = "reason"          // Failure reason
	KeyCount          = "count"           // Number of records affected
	KeySize           = "size"            // Size in bytes
	KeySource         = "source"          // Caller that submitted a task
	KeyCallbackID     = "callback_id"     // Callback identity of a task

	// ========================================================================
	// Agents & Backends
	// ========================================================================
	KeyAgent   = "agent"   // Background agent name
	KeyBackend = "backend" // Staging backend type
	KeyBucket  = "bucket"  // Object store bucket
	KeyKey     = "key"     // Object key
	KeyRegion  = "region"  // Cloud region
	KeyAttempt = "attempt" // Retry attempt number

	// ========================================================================
	// HTTP API
	// ========================================================================
	KeyOperation  = "operation"   // Coordinator operation name
	KeyMethod     = "method"      // HTTP method
	KeyPath       = "path"        // HTTP request path
	KeyClientIP   = "client_ip"   // Client IP address
	KeySubject    = "subject"     // Authenticated token subject
	KeyHTTPStatus = "http_status" // HTTP response status

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

func TaskID(id string) slog.Attr {
	return slog.String(KeyTaskID, id)
}

func ReplicaID(id string) slog.Attr {
	return slog.String(KeyReplicaID, id)
}

func StorageElement(se string) slog.Attr {
	return slog.String(KeyStorageElement, se)
}

func LFN(name string) slog.Attr {
	return slog.String(KeyLFN, name)
}

func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Status returns a slog.Attr for any status enum with a String method.
func Status(s interface{ String() string }) slog.Attr {
	return slog.String(KeyStatus, s.String())
}

func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

func Agent(name string) slog.Attr {
	return slog.String(KeyAgent, name)
}

// DurationAttr returns a slog.Attr with d expressed in milliseconds.
func DurationAttr(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMs, float64(d.Microseconds())/1000.0)
}

// Err returns a slog.Attr for an error. A nil error yields an empty Attr,
// which slog drops.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
