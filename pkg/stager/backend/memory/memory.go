// Package memory provides an in-process archive simulator. It resolves any
// file name unless told otherwise and completes recalls after a fixed delay.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/stager/backend"
	"github.com/marmos91/stager/pkg/stager/models"
)

// Config configures the simulator.
type Config struct {
	// RecallDelay is how long a recall takes to complete.
	RecallDelay time.Duration `mapstructure:"recall_delay" yaml:"recall_delay"`

	// DefaultSize is reported for files that were never added explicitly.
	DefaultSize int64 `mapstructure:"default_size" validate:"gte=0" yaml:"default_size"`

	// Strict makes files that were never added unknown to the catalog.
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

type recall struct {
	requestID string
	submitted time.Time
}

// Backend is the in-memory implementation of backend.Backend.
type Backend struct {
	mu       sync.Mutex
	config   Config
	files    map[string]int64
	failures map[string]string
	recalls  map[string]recall
	closed   bool

	// now is replaceable in tests.
	now func() time.Time
}

// New creates an empty simulator.
func New(config Config) *Backend {
	return &Backend{
		config:   config,
		files:    make(map[string]int64),
		failures: make(map[string]string),
		recalls:  make(map[string]recall),
		now:      time.Now,
	}
}

// AddFile registers a file with a known size.
func (b *Backend) AddFile(lfn string, size int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[lfn] = size
}

// FailFile makes every recall of lfn fail with reason.
func (b *Backend) FailFile(lfn, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[lfn] = reason
}

// SetClock replaces the clock used to age recalls.
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Recalls returns the number of recalls submitted so far.
func (b *Backend) Recalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.recalls)
}

func (b *Backend) Type() string { return "memory" }

func (b *Backend) Resolve(_ context.Context, storageElement string, lfns []string) (map[string]backend.FileMetadata, map[string]error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, backend.ErrBackendClosed
	}

	found := make(map[string]backend.FileMetadata, len(lfns))
	missing := make(map[string]error)
	for _, lfn := range lfns {
		size, ok := b.files[lfn]
		if !ok {
			if b.config.Strict {
				missing[lfn] = fmt.Errorf("%w: %s", backend.ErrFileNotFound, lfn)
				continue
			}
			size = b.config.DefaultSize
		}
		found[lfn] = backend.FileMetadata{
			PFN:  fmt.Sprintf("memory://%s/%s", storageElement, lfn),
			Size: size,
		}
	}
	return found, missing, nil
}

func (b *Backend) SubmitRecall(_ context.Context, requestID string, replicas []models.CacheReplica, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return backend.ErrBackendClosed
	}

	now := b.now()
	for _, r := range replicas {
		b.recalls[r.ID] = recall{requestID: requestID, submitted: now}
	}
	logger.Debug("Simulated recall submitted",
		logger.KeyRequestID, requestID,
		logger.KeyCount, len(replicas))
	return nil
}

func (b *Backend) PollRecall(_ context.Context, replicas []models.CacheReplica) (map[string]backend.RecallResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, backend.ErrBackendClosed
	}

	now := b.now()
	results := make(map[string]backend.RecallResult, len(replicas))
	for _, r := range replicas {
		rc, ok := b.recalls[r.ID]
		switch {
		case !ok:
			results[r.ID] = backend.RecallResult{State: backend.RecallFailed, Reason: "no recall submitted"}
		case b.failures[r.LFN] != "":
			results[r.ID] = backend.RecallResult{State: backend.RecallFailed, Reason: b.failures[r.LFN]}
		case now.Sub(rc.submitted) >= b.config.RecallDelay:
			results[r.ID] = backend.RecallResult{State: backend.RecallDone}
		default:
			results[r.ID] = backend.RecallResult{State: backend.RecallPending}
		}
	}
	return results, nil
}

func (b *Backend) HealthCheck(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return backend.ErrBackendClosed
	}
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

var _ backend.Backend = (*Backend)(nil)
