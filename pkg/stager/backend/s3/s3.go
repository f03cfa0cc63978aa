// Package s3 recalls archived objects from S3 Glacier storage classes.
//
// A logical file name maps to an object key under KeyPrefix. Resolve reads
// object metadata with HeadObject. SubmitRecall issues RestoreObject for
// objects in an archival storage class and PollRecall reads the x-amz-restore
// header to learn when the temporary copy is available. Objects in an online
// storage class need no recall and complete immediately.
package s3

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/internal/telemetry"
	"github.com/marmos91/stager/pkg/stager/backend"
	"github.com/marmos91/stager/pkg/stager/models"
)

const backendType = "s3"

// Config holds configuration for the S3 recall backend.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" validate:"required" yaml:"bucket"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// KeyPrefix is prepended to every object key. Should end with "/" if
	// non-empty.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// ForcePathStyle forces path-style addressing (required for MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	// AccessKeyID and SecretAccessKey override the default credential chain.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// Tier is the Glacier retrieval tier: Standard, Bulk or Expedited.
	Tier string `mapstructure:"tier" validate:"omitempty,oneof=Standard Bulk Expedited" yaml:"tier,omitempty"`
}

// Backend is the S3 implementation of backend.Backend.
type Backend struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	tier      types.Tier
	metrics   backend.Metrics

	mu     sync.RWMutex
	closed bool
}

// New creates a backend with an existing client. metrics may be nil.
func New(client *s3.Client, config Config, metrics backend.Metrics) *Backend {
	tier := types.TierStandard
	if config.Tier != "" {
		tier = types.Tier(config.Tier)
	}
	return &Backend{
		client:    client,
		bucket:    config.Bucket,
		keyPrefix: config.KeyPrefix,
		tier:      tier,
		metrics:   metrics,
	}
}

// NewFromConfig creates a backend by building an S3 client from config.
func NewFromConfig(ctx context.Context, config Config, metrics backend.Metrics) (*Backend, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("s3 backend requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}
	if config.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), config, metrics), nil
}

func (b *Backend) Type() string { return backendType }

// objectKey returns the object key of a logical file name.
func (b *Backend) objectKey(lfn string) string {
	return b.keyPrefix + strings.TrimPrefix(lfn, "/")
}

func (b *Backend) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return backend.ErrBackendClosed
	}
	return nil
}

func (b *Backend) observe(operation string, start time.Time, err error) {
	if b.metrics != nil {
		b.metrics.ObserveOperation(backendType, operation, time.Since(start), err)
	}
}

func (b *Backend) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	start := time.Now()
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if isNotFoundError(err) {
		b.observe("HeadObject", start, nil)
		return nil, backend.ErrFileNotFound
	}
	b.observe("HeadObject", start, err)
	if err != nil {
		return nil, fmt.Errorf("s3 head object %s: %w", key, err)
	}
	return out, nil
}

func (b *Backend) Resolve(ctx context.Context, _ string, lfns []string) (map[string]backend.FileMetadata, map[string]error, error) {
	if err := b.checkOpen(); err != nil {
		return nil, nil, err
	}
	telemetry.SetAttributes(ctx, telemetry.Bucket(b.bucket))

	found := make(map[string]backend.FileMetadata, len(lfns))
	missing := make(map[string]error)
	for _, lfn := range lfns {
		key := b.objectKey(lfn)
		out, err := b.head(ctx, key)
		if errors.Is(err, backend.ErrFileNotFound) {
			missing[lfn] = fmt.Errorf("%w: s3://%s/%s", backend.ErrFileNotFound, b.bucket, key)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		found[lfn] = backend.FileMetadata{
			PFN:      fmt.Sprintf("s3://%s/%s", b.bucket, key),
			Size:     aws.ToInt64(out.ContentLength),
			Checksum: strings.Trim(aws.ToString(out.ETag), `"`),
		}
	}
	return found, missing, nil
}

// restoreDays converts a pin lifetime to the whole number of days S3 keeps
// the restored copy, at least one.
func restoreDays(pinLifetime time.Duration) int32 {
	days := math.Ceil(pinLifetime.Hours() / 24)
	if days < 1 {
		return 1
	}
	if days > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(days)
}

func (b *Backend) SubmitRecall(ctx context.Context, requestID string, replicas []models.CacheReplica, pinLifetime time.Duration) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	telemetry.SetAttributes(ctx, telemetry.Bucket(b.bucket))

	days := restoreDays(pinLifetime)
	restored := 0
	for _, r := range replicas {
		key := b.objectKey(r.LFN)

		start := time.Now()
		_, err := b.client.RestoreObject(ctx, &s3.RestoreObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
			RestoreRequest: &types.RestoreRequest{
				Days: aws.Int32(days),
				GlacierJobParameters: &types.GlacierJobParameters{
					Tier: b.tier,
				},
			},
		})
		switch code := errorCode(err); {
		case err == nil:
			restored++
		case code == "RestoreAlreadyInProgress":
			// Another request already asked for this object.
			err = nil
		case code == "InvalidObjectState":
			// Not archived; PollRecall will report it done.
			err = nil
		}
		b.observe("RestoreObject", start, err)
		if err != nil {
			return fmt.Errorf("s3 restore object %s: %w", key, err)
		}
	}

	logger.Debug("S3 restore requested",
		logger.KeyRequestID, requestID,
		logger.KeyBucket, b.bucket,
		logger.KeyCount, restored,
		"days", days)
	return nil
}

func (b *Backend) PollRecall(ctx context.Context, replicas []models.CacheReplica) (map[string]backend.RecallResult, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	telemetry.SetAttributes(ctx, telemetry.Bucket(b.bucket))

	results := make(map[string]backend.RecallResult, len(replicas))
	for _, r := range replicas {
		out, err := b.head(ctx, b.objectKey(r.LFN))
		if errors.Is(err, backend.ErrFileNotFound) {
			results[r.ID] = backend.RecallResult{State: backend.RecallFailed, Reason: "object not found"}
			continue
		}
		if err != nil {
			return nil, err
		}
		results[r.ID] = restoreState(out.StorageClass, aws.ToString(out.Restore))
	}

	if b.metrics != nil {
		counts := make(map[backend.RecallState]int)
		for _, res := range results {
			counts[res.State]++
		}
		for state, n := range counts {
			b.metrics.RecordRecalls(backendType, state, n)
		}
	}
	return results, nil
}

// restoreState interprets the storage class and x-amz-restore header of an
// object.
func restoreState(class types.StorageClass, restore string) backend.RecallResult {
	if !isArchived(class) {
		return backend.RecallResult{State: backend.RecallDone}
	}
	switch {
	case strings.Contains(restore, `ongoing-request="true"`):
		return backend.RecallResult{State: backend.RecallPending}
	case strings.Contains(restore, `ongoing-request="false"`):
		return backend.RecallResult{State: backend.RecallDone}
	default:
		return backend.RecallResult{State: backend.RecallFailed, Reason: "no restore in progress for archived object"}
	}
}

func isArchived(class types.StorageClass) bool {
	return class == types.StorageClassGlacier || class == types.StorageClassDeepArchive
}

func (b *Backend) HealthCheck(ctx context.Context) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	start := time.Now()
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	b.observe("HeadBucket", start, err)
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

// Close marks the backend as closed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// isNotFoundError checks if an error is an S3 not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	switch errorCode(err) {
	case "NotFound", "NoSuchKey":
		return true
	}
	return false
}

var _ backend.Backend = (*Backend)(nil)
