package service

import (
	"context"
	"fmt"
	"time"

	"audioguide/internal/domain"
	"audioguide/pkg/redis"
	"audioguide/pkg/utils"
)

// Rate limiting defaults
const (
	TrafficRateLimitWindow   = 1 * time.Hour
	TrafficRateLimitRequests = 60

	RegisterRateLimitWindow   = 10 * time.Minute
	RegisterRateLimitRequests = 20
)

// RateLimiter is a fixed-window counter per hashed client IP
type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
	key    func(ipHash string) string
	now    func() time.Time
}

// NewTrafficRateLimiter limits page-visit recording per IP
func NewTrafficRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis:  client,
		limit:  TrafficRateLimitRequests,
		window: TrafficRateLimitWindow,
		key:    client.KeyBuilder.KeyTrafficRateLimit,
		now:    time.Now,
	}
}

// NewRegisterRateLimiter limits visitor registration attempts per IP
func NewRegisterRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = RegisterRateLimitRequests
	}
	if window <= 0 {
		window = RegisterRateLimitWindow
	}
	return &RateLimiter{
		redis:  client,
		limit:  limit,
		window: window,
		key:    client.KeyBuilder.KeyRegisterRateLimit,
		now:    time.Now,
	}
}

// Allow counts one request from ipAddress and reports whether it is within the limit
func (l *RateLimiter) Allow(ctx context.Context, ipAddress string) (*domain.RateLimitInfo, error) {
	key := l.key(utils.HashIP(ipAddress))

	count, err := l.redis.Incr(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// Set expiry on first request
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window); err != nil {
			return nil, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	return &domain.RateLimitInfo{
		Key:          key,
		RequestCount: count,
		Limit:        l.limit,
		WindowStart:  l.now().Truncate(l.window),
		TTL:          l.window,
		IsAllowed:    count <= l.limit,
	}, nil
}
