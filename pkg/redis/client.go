package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Nil is returned by Get when the key does not exist
const Nil = redis.Nil

type Client struct {
	rdb        *redis.Client
	KeyBuilder *KeyBuilder
	log        *zap.Logger
}

// Cache key patterns
const (
	KeyArtifactByCode = "guide:artifact:code:%s" // artifact payload keyed by normalized code

	KeyTrafficTotal       = "traffic:total"
	KeyTrafficDaily       = "traffic:daily:%s"        // traffic:daily:2024-01-15
	KeyTrafficUnique      = "traffic:unique"          // set of visitor hashes
	KeyTrafficUniqueDaily = "traffic:unique:daily:%s" // traffic:unique:daily:2024-01-15
	KeyTrafficRateLimit   = "traffic:ratelimit:%s"    // traffic:ratelimit:{ipHash}
	KeyTrafficLastUpdate  = "traffic:last_update"
	KeyActiveSessions     = "traffic:sessions:active" // zset of visitor ids scored by grant expiry
	KeySnapshotLock       = "traffic:snapshot:lock"   // held by the instance writing the current snapshot

	KeyRegisterRateLimit = "registry:ratelimit:%s" // registry:ratelimit:{ipHash}

	KeyRevokedToken = "auth:revoked:%s" // auth:revoked:{token id}
)

// TTL constants
const (
	TTLArtifact = 10 * time.Minute // admin edits invalidate explicitly
)

// NewClient creates a new Redis client
func NewClient(redisURL string, environment string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 20
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{rdb: rdb, KeyBuilder: NewKeyBuilder(environment), log: log}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// observe logs the outcome of a single command. Failures are logged at info
// because callers decide whether a cache error matters.
func (c *Client) observe(op, key string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("key_prefix", prefixForLog(key)),
		zap.Duration("duration", time.Since(start)))
	if err != nil && err != redis.Nil {
		c.log.Info(op, append(fields, zap.Error(err))...)
		return
	}
	c.log.Debug(op, fields...)
}

// Get retrieves a value from Redis
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := c.rdb.Get(ctx, key).Result()
	c.observe("redis_get", key, start, err)
	return val, err
}

// Set stores a value in Redis with TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Set(ctx, key, value, ttl).Err()
	c.observe("redis_set", key, start, err)
	return err
}

// SetNX sets a value only if it doesn't exist
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	c.observe("redis_setnx", key, start, err, zap.Bool("result", ok))
	return ok, err
}

// Delete removes keys from Redis
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()
	err := c.rdb.Del(ctx, keys...).Err()
	c.observe("redis_del", keys[0], start, err, zap.Int("keys", len(keys)))
	return err
}

// Exists checks if keys exist
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	start := time.Now()
	n, err := c.rdb.Exists(ctx, keys...).Result()
	c.observe("redis_exists", keys[0], start, err, zap.Int64("result", n))
	return n, err
}

// Incr increments a counter
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	v, err := c.rdb.Incr(ctx, key).Result()
	c.observe("redis_incr", key, start, err, zap.Int64("value", v))
	return v, err
}

// Expire sets a TTL on a key
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Expire(ctx, key, ttl).Err()
	c.observe("redis_expire", key, start, err)
	return err
}

// SCard returns the cardinality of a set
func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	n, err := c.rdb.SCard(ctx, key).Result()
	c.observe("redis_scard", key, start, err, zap.Int64("result", n))
	return n, err
}

// ZAdd adds or updates a member of a sorted set
func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	start := time.Now()
	err := c.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	c.observe("redis_zadd", key, start, err)
	return err
}

// ZCountAbove counts members with score strictly greater than min
func (c *Client) ZCountAbove(ctx context.Context, key string, min float64) (int64, error) {
	start := time.Now()
	n, err := c.rdb.ZCount(ctx, key, fmt.Sprintf("(%f", min), "+inf").Result()
	c.observe("redis_zcount", key, start, err, zap.Int64("result", n))
	return n, err
}

// ZRemUpTo removes members with score less than or equal to max
func (c *Client) ZRemUpTo(ctx context.Context, key string, max float64) (int64, error) {
	start := time.Now()
	n, err := c.rdb.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%f", max)).Result()
	c.observe("redis_zremrangebyscore", key, start, err, zap.Int64("removed", n))
	return n, err
}

// Health checks the Redis connection
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	c.observe("redis_ping", "", start, err)
	return err
}

// Pipeline creates a new pipeline for batch operations
func (c *Client) Pipeline() redis.Pipeliner {
	return c.rdb.Pipeline()
}

// prefixForLog returns a safe prefix of a key to avoid logging PII
func prefixForLog(key string) string {
	if len(key) <= 24 {
		return key
	}
	return key[:24] + "…"
}
