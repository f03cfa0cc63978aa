// Package backend defines the collaborators the staging agents talk to: the
// catalog that resolves logical file names to physical ones and the archive
// that recalls files into the disk cache.
//
// Each storage element is served by exactly one Backend, looked up through a
// Registry. Implementations live in the memory and s3 subpackages.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/stager/pkg/stager/models"
)

var (
	// ErrFileNotFound is returned per file when the catalog does not know it.
	ErrFileNotFound = errors.New("file not found in catalog")

	// ErrUnknownStorageElement is returned when no backend serves a storage
	// element.
	ErrUnknownStorageElement = errors.New("no backend for storage element")

	// ErrBackendClosed is returned by a backend after Close.
	ErrBackendClosed = errors.New("backend is closed")
)

// FileMetadata is what the catalog knows about one logical file.
type FileMetadata struct {
	PFN      string
	Size     int64
	Checksum string
	GUID     string
}

// RecallState is the progress of one recall as observed by PollRecall.
type RecallState int

const (
	// RecallPending means the archive is still working on the file.
	RecallPending RecallState = iota

	// RecallDone means the file is on disk and pinned.
	RecallDone

	// RecallFailed means the archive gave up on the file.
	RecallFailed
)

func (s RecallState) String() string {
	switch s {
	case RecallPending:
		return "pending"
	case RecallDone:
		return "done"
	case RecallFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RecallResult is the observed state of one replica's recall.
type RecallResult struct {
	State  RecallState
	Reason string
}

// Resolver looks logical file names up in a file catalog.
type Resolver interface {
	// Resolve returns metadata for the files it found and a per-file error
	// for the ones it could not resolve. A non-nil error means the whole
	// lookup failed and should be retried.
	Resolve(ctx context.Context, storageElement string, lfns []string) (map[string]FileMetadata, map[string]error, error)
}

// Recaller issues and observes physical recalls.
type Recaller interface {
	// SubmitRecall asks the archive to bring replicas online and keep them
	// pinned for pinLifetime. All replicas share one external request id.
	SubmitRecall(ctx context.Context, requestID string, replicas []models.CacheReplica, pinLifetime time.Duration) error

	// PollRecall reports the recall state of each replica, keyed by replica id.
	// Replicas missing from the result are still pending.
	PollRecall(ctx context.Context, replicas []models.CacheReplica) (map[string]RecallResult, error)
}

// Backend serves one storage element.
type Backend interface {
	Resolver
	Recaller

	// Type returns the backend type name, e.g. "memory" or "s3".
	Type() string

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	Close() error
}

// Metrics records backend calls. A nil Metrics disables recording.
type Metrics interface {
	ObserveOperation(backendType, operation string, duration time.Duration, err error)
	RecordRecalls(backendType string, state RecallState, count int)
}
