package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/stager/backend"
	"github.com/marmos91/stager/pkg/stager/backend/memory"
	"github.com/marmos91/stager/pkg/stager/backend/s3"
	"github.com/marmos91/stager/pkg/stager/service"
)

// InitializeBackends creates and registers the backend of every configured
// storage element. On failure the backends created so far are closed.
// metrics may be nil.
func InitializeBackends(ctx context.Context, cfg *Config, metrics backend.Metrics) (*backend.Registry, error) {
	logger.Debug("Initializing storage element backends", logger.KeyCount, len(cfg.StorageElements))

	reg := backend.NewRegistry()
	for _, se := range cfg.StorageElements {
		b, err := CreateBackend(ctx, se, metrics)
		if err == nil {
			err = reg.Register(se.Name, b)
		}
		if err != nil {
			return nil, errors.Join(
				fmt.Errorf("storage element %s: %w", se.Name, err),
				reg.Close(),
			)
		}
		logger.Info("Storage element registered",
			logger.KeyStorageElement, se.Name,
			"backend", b.Type(),
			"quota", se.Quota.String())
	}
	return reg, nil
}

// CreateBackend creates a single backend from its configuration.
func CreateBackend(ctx context.Context, cfg StorageElementConfig, metrics backend.Metrics) (backend.Backend, error) {
	switch cfg.Type {
	case "memory":
		var memCfg memory.Config
		if cfg.Memory != nil {
			memCfg = *cfg.Memory
		}
		return memory.New(memCfg), nil
	case "s3":
		if cfg.S3 == nil || cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 backend requires bucket to be set")
		}
		return s3.NewFromConfig(ctx, *cfg.S3, metrics)
	default:
		return nil, fmt.Errorf("unknown backend type: %q", cfg.Type)
	}
}

// ServiceOptions returns the coordinator options derived from the staging
// section.
func (c *Config) ServiceOptions() service.Options {
	return service.Options{
		PinLifetime:  c.Staging.PinLifetime,
		PinRetention: c.Staging.PinRetention,
	}
}
