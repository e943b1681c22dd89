package service

import (
	"context"
	"testing"
	"time"

	"audioguide/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheService_NilPassesThrough(t *testing.T) {
	var cache *CacheService
	calls := 0
	fallback := func(ctx context.Context, code string) (*domain.Artifact, error) {
		calls++
		return &domain.Artifact{ArtifactCode: code}, nil
	}

	artifact, err := cache.GetArtifactWithCache(context.Background(), "A1", fallback)
	require.NoError(t, err)
	assert.Equal(t, "A1", artifact.ArtifactCode)
	assert.Equal(t, 1, calls)

	cache.InvalidateArtifact(context.Background(), "A1")
	assert.NoError(t, cache.HealthCheck(context.Background()))
}

func TestCacheService_CorruptEntryFallsBack(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewCacheService(client, nil)

	key := client.KeyBuilder.KeyArtifactByCode("A1")
	require.NoError(t, mr.Set(key, "{not json"))

	calls := 0
	artifact, err := cache.GetArtifactWithCache(context.Background(), "A1", func(ctx context.Context, code string) (*domain.Artifact, error) {
		calls++
		return &domain.Artifact{ID: "id-1", ArtifactCode: code}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "id-1", artifact.ID)
	assert.Equal(t, 1, calls)

	// The corrupt entry is overwritten with the fresh copy
	require.Eventually(t, func() bool {
		v, _ := mr.Get(key)
		return v != "{not json"
	}, time.Second, 10*time.Millisecond)
}

func TestCacheService_MissesAreNotCached(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewCacheService(client, nil)

	artifact, err := cache.GetArtifactWithCache(context.Background(), "NOPE", func(ctx context.Context, code string) (*domain.Artifact, error) {
		return nil, nil
	})

	require.NoError(t, err)
	assert.Nil(t, artifact)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, mr.Exists(client.KeyBuilder.KeyArtifactByCode("NOPE")))
}

func TestCacheService_FallbackError(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewCacheService(client, nil)

	_, err := cache.GetArtifactWithCache(context.Background(), "A1", func(ctx context.Context, code string) (*domain.Artifact, error) {
		return nil, errStoreDown
	})

	assert.ErrorIs(t, err, errStoreDown)
}

func TestCacheService_HealthCheck(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewCacheService(client, nil)

	assert.NoError(t, cache.HealthCheck(context.Background()))

	mr.SetError("server down")
	assert.Error(t, cache.HealthCheck(context.Background()))
}
