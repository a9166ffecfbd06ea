package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

func validConfig() *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:          "taxcrm-test",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
		PresignExpiry:   15 * time.Minute,
	}
}

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := validConfig()
		cfg.Bucket = ""
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		cfg := validConfig()
		cfg.AccessKeyID = ""
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		cfg := validConfig()
		cfg.SecretAccessKey = ""
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("valid config creates storage", func(t *testing.T) {
		storage, err := NewS3ObjectStorage(validConfig(), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.Equal(t, "taxcrm-test", storage.Bucket())
	})

	t.Run("endpoint without scheme defaults to https", func(t *testing.T) {
		cfg := validConfig()
		cfg.Endpoint = "s3.example.com"
		storage, err := NewS3ObjectStorage(cfg)
		require.NoError(t, err)
		u, _, err := storage.PresignGet(context.Background(), "a.txt", time.Minute)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(u, "https://s3.example.com"))
	})
}

func TestS3ObjectStorage_PresignGet(t *testing.T) {
	storage, err := NewS3ObjectStorage(validConfig(), WithPresignExpiration(5*time.Minute))
	require.NoError(t, err)

	t.Run("signs key", func(t *testing.T) {
		u, expiresAt, err := storage.PresignGet(context.Background(), "backups/tenant-x/1.enc", 0)
		require.NoError(t, err)
		assert.Contains(t, u, "taxcrm-test/backups/tenant-x/1.enc")
		assert.Contains(t, u, "X-Amz-Signature=")
		assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)
	})

	t.Run("empty key", func(t *testing.T) {
		_, _, err := storage.PresignGet(context.Background(), "", time.Minute)
		assert.ErrorIs(t, err, errKeyRequired)
	})
}

func TestS3ObjectStorage_EmptyKey(t *testing.T) {
	storage, err := NewS3ObjectStorage(validConfig())
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, storage.Delete(ctx, ""), errKeyRequired)
	assert.ErrorIs(t, storage.PutBytes(ctx, "", []byte("x"), "text/plain"), errKeyRequired)
	_, err = storage.Get(ctx, "")
	assert.ErrorIs(t, err, errKeyRequired)
	_, err = storage.Exists(ctx, "")
	assert.ErrorIs(t, err, errKeyRequired)
}
