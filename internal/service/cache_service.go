package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"audioguide/internal/domain"
	"audioguide/pkg/redis"
	"go.uber.org/zap"
)

// CacheService is a cache-aside layer over Redis. A nil *CacheService, or one
// without a client, passes every call straight to the fallback.
type CacheService struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewCacheService creates a new cache service
func NewCacheService(redisClient *redis.Client, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{
		redis:  redisClient,
		logger: logger,
	}
}

func (c *CacheService) enabled() bool {
	return c != nil && c.redis != nil
}

// GetArtifactWithCache retrieves an artifact by normalized code, trying Redis first
func (c *CacheService) GetArtifactWithCache(ctx context.Context, code string, dbFallback func(ctx context.Context, code string) (*domain.Artifact, error)) (*domain.Artifact, error) {
	if !c.enabled() {
		return dbFallback(ctx, code)
	}

	cacheKey := c.redis.KeyBuilder.KeyArtifactByCode(code)

	// Try cache first
	cachedData, err := c.redis.Get(ctx, cacheKey)
	if err == nil && cachedData != "" {
		var artifact domain.Artifact
		if marshalErr := json.Unmarshal([]byte(cachedData), &artifact); marshalErr == nil {
			c.logger.Debug("Artifact cache hit", zap.String("code", code))
			return &artifact, nil
		} else {
			// Log cache corruption but continue to database
			c.logger.Warn("Artifact cache corrupted, falling back to database",
				zap.String("code", code),
				zap.Error(marshalErr))
		}
	} else if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("Artifact cache error, falling back to database",
			zap.String("code", code),
			zap.Error(err))
	}

	c.logger.Debug("Artifact cache miss", zap.String("code", code))
	artifact, err := dbFallback(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("database fallback failed: %w", err)
	}

	// Cache the result asynchronously (fire and forget)
	if artifact != nil {
		go c.cacheArtifactAsync(code, artifact)
	}

	return artifact, nil
}

// InvalidateArtifact drops the cached lookup for a code
func (c *CacheService) InvalidateArtifact(ctx context.Context, code string) {
	if !c.enabled() || code == "" {
		return
	}

	if err := c.redis.Delete(ctx, c.redis.KeyBuilder.KeyArtifactByCode(code)); err != nil {
		c.logger.Error("Failed to invalidate artifact cache",
			zap.String("code", code),
			zap.Error(err))
		return
	}
	c.logger.Debug("Artifact cache invalidated", zap.String("code", code))
}

// HealthCheck performs a health check on the cache system
func (c *CacheService) HealthCheck(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}

	start := time.Now()
	err := c.redis.Health(ctx)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Cache health check failed",
			zap.Duration("duration", duration),
			zap.Error(err))
		return err
	}

	c.logger.Debug("Cache health check passed", zap.Duration("duration", duration))
	return nil
}

// cacheArtifactAsync caches artifact data asynchronously
func (c *CacheService) cacheArtifactAsync(code string, artifact *domain.Artifact) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(artifact)
	if err != nil {
		c.logger.Error("Failed to marshal artifact for caching",
			zap.String("code", code),
			zap.Error(err))
		return
	}

	if err := c.redis.Set(ctx, c.redis.KeyBuilder.KeyArtifactByCode(code), string(data), redis.TTLArtifact); err != nil {
		c.logger.Error("Failed to cache artifact",
			zap.String("code", code),
			zap.Error(err))
	} else {
		c.logger.Debug("Artifact cached successfully", zap.String("code", code))
	}
}
