package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/stager/pkg/stager/backend/memory"
	"github.com/marmos91/stager/pkg/stager/backend/s3"
)

func TestInitializeBackends(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.StorageElements = append(cfg.StorageElements, StorageElementConfig{
		Name:   "GLACIER",
		Type:   "s3",
		S3:     &s3.Config{Bucket: "archive", Region: "us-east-1", Endpoint: "http://127.0.0.1:1", ForcePathStyle: true},
		Memory: &memory.Config{},
	})

	reg, err := InitializeBackends(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	assert.Equal(t, []string{"GLACIER", DefaultStorageElement}, reg.StorageElements())

	b, err := reg.Get("GLACIER")
	require.NoError(t, err)
	assert.Equal(t, "s3", b.Type())

	b, err = reg.Get(DefaultStorageElement)
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Type())
}

func TestCreateBackend_Errors(t *testing.T) {
	_, err := CreateBackend(context.Background(), StorageElementConfig{Name: "X", Type: "s3"}, nil)
	assert.Error(t, err)

	_, err = CreateBackend(context.Background(), StorageElementConfig{Name: "X", Type: "tape"}, nil)
	assert.Error(t, err)

	b, err := CreateBackend(context.Background(), StorageElementConfig{Name: "X", Type: "memory"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Type())
}
