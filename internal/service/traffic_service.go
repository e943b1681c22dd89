package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"audioguide/internal/domain"
	"audioguide/internal/repository"
	"audioguide/pkg/logger"
	"audioguide/pkg/redis"
	"audioguide/pkg/utils"

	"github.com/google/uuid"
)

// TTL constants for traffic tracking
const (
	TTLTrafficDaily       = 25 * time.Hour
	TTLTrafficUnique      = 7 * 24 * time.Hour
	TTLTrafficUniqueDaily = 25 * time.Hour
	TTLTrafficLastUpdate  = 24 * time.Hour
)

const (
	DefaultSnapshotInterval = 30 * time.Second
	SnapshotRetentionDays   = 90
)

// trafficService counts guide page visits in Redis and snapshots them to PostgreSQL
type trafficService struct {
	redisClient *redis.Client
	snapshots   repository.TrafficRepository
	limiter     *RateLimiter
	logger      *logger.Logger
	interval    time.Duration
	instanceID  string
	now         func() time.Time

	mu        sync.Mutex
	ticker    *time.Ticker
	stop      chan struct{}
	done      chan struct{}
	isRunning bool
}

// NewTrafficService creates the traffic service. It requires Redis.
func NewTrafficService(redisClient *redis.Client, snapshots repository.TrafficRepository, logger *logger.Logger) TrafficService {
	logger.WithField("key_prefix", redisClient.KeyBuilder.GetPrefix()).Info("Initialized traffic service with environment prefix")

	return &trafficService{
		redisClient: redisClient,
		snapshots:   snapshots,
		limiter:     NewTrafficRateLimiter(redisClient),
		logger:      logger,
		interval:    DefaultSnapshotInterval,
		instanceID:  uuid.NewString(),
		now:         time.Now,
	}
}

// Start restores counters from the last snapshot when Redis is empty and
// begins periodic snapshots
func (s *trafficService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	s.logger.Info("Starting traffic service...")

	if err := s.restoreFromSnapshot(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to restore from snapshot, continuing with fresh counters")
	}

	s.ticker = time.NewTicker(s.interval)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.snapshotRoutine(ctx, s.ticker, s.stop, s.done)

	s.isRunning = true
	s.logger.Info("Traffic service started successfully")
	return nil
}

// Stop ends the snapshot routine and saves a final snapshot
func (s *trafficService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.logger.Info("Stopping traffic service...")

	s.ticker.Stop()
	close(s.stop)
	<-s.done

	if err := s.saveSnapshot(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to save final snapshot during shutdown")
	}

	s.isRunning = false
	s.logger.Info("Traffic service stopped")
	return nil
}

// RecordVisit records a page visit unless the IP is over its rate limit
func (s *trafficService) RecordVisit(ctx context.Context, ipAddress, userAgent string) (*domain.RateLimitInfo, error) {
	rateLimitInfo, err := s.limiter.Allow(ctx, ipAddress)
	if err != nil {
		s.logger.WithError(err).Error("Failed to check rate limit")
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	if !rateLimitInfo.IsAllowed {
		s.logger.WithFields(map[string]interface{}{
			"ip_hash":       utils.HashIP(ipAddress),
			"request_count": rateLimitInfo.RequestCount,
		}).Warn("Rate limit exceeded")
		return rateLimitInfo, nil
	}

	visitorHash := utils.HashVisitor(ipAddress, userAgent)
	now := s.now()
	today := now.Format("2006-01-02")
	kb := s.redisClient.KeyBuilder

	pipe := s.redisClient.Pipeline()

	pipe.Incr(ctx, kb.KeyTrafficTotal())

	dailyKey := kb.KeyTrafficDaily(today)
	pipe.Incr(ctx, dailyKey)
	pipe.Expire(ctx, dailyKey, TTLTrafficDaily)

	uniqueKey := kb.KeyTrafficUnique()
	pipe.SAdd(ctx, uniqueKey, visitorHash)
	pipe.Expire(ctx, uniqueKey, TTLTrafficUnique)

	uniqueDailyKey := kb.KeyTrafficUniqueDaily(today)
	pipe.SAdd(ctx, uniqueDailyKey, visitorHash)
	pipe.Expire(ctx, uniqueDailyKey, TTLTrafficUniqueDaily)

	pipe.Set(ctx, kb.KeyTrafficLastUpdate(), now.Unix(), TTLTrafficLastUpdate)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to record visit")
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}

	s.logger.WithField("visitor_hash", visitorHash[:8]+"...").Debug("Visit recorded successfully")
	return rateLimitInfo, nil
}

// TouchSession keeps a visitor in the active set until its grant expires
func (s *trafficService) TouchSession(ctx context.Context, session *domain.Session) error {
	if session == nil || !session.Valid() || session.ExpiresAt == nil {
		return nil
	}
	if session.Expired(s.now()) {
		return nil
	}

	key := s.redisClient.KeyBuilder.KeyActiveSessions()
	if err := s.redisClient.ZAdd(ctx, key, float64(session.ExpiresAt.Unix()), session.ID); err != nil {
		return fmt.Errorf("failed to track session: %w", err)
	}
	return nil
}

// GetStats reads the live counters from Redis
func (s *trafficService) GetStats(ctx context.Context) (*domain.TrafficStats, error) {
	kb := s.redisClient.KeyBuilder
	now := s.now()
	today := now.Format("2006-01-02")

	total, err := s.getCounter(ctx, kb.KeyTrafficTotal())
	if err != nil {
		return nil, err
	}
	daily, err := s.getCounter(ctx, kb.KeyTrafficDaily(today))
	if err != nil {
		return nil, err
	}
	unique, err := s.redisClient.SCard(ctx, kb.KeyTrafficUnique())
	if err != nil {
		return nil, fmt.Errorf("failed to count unique visits: %w", err)
	}

	sessionsKey := kb.KeyActiveSessions()
	if _, err := s.redisClient.ZRemUpTo(ctx, sessionsKey, float64(now.Unix())); err != nil {
		s.logger.WithError(err).Warn("Failed to prune expired sessions")
	}
	active, err := s.redisClient.ZCountAbove(ctx, sessionsKey, float64(now.Unix()))
	if err != nil {
		return nil, fmt.Errorf("failed to count active sessions: %w", err)
	}

	lastUpdated := now
	if raw, err := s.redisClient.Get(ctx, kb.KeyTrafficLastUpdate()); err == nil {
		if ts, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			lastUpdated = time.Unix(ts, 0)
		}
	}

	return &domain.TrafficStats{
		TotalVisits:    total,
		DailyVisits:    daily,
		UniqueVisits:   unique,
		ActiveSessions: active,
		LastUpdated:    lastUpdated,
	}, nil
}

func (s *trafficService) getCounter(ctx context.Context, key string) (int64, error) {
	raw, err := s.redisClient.Get(ctx, key)
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter: %w", err)
	}
	return value, nil
}

// restoreFromSnapshot restores counters from the latest SQL snapshot if Redis is empty
func (s *trafficService) restoreFromSnapshot(ctx context.Context) error {
	kb := s.redisClient.KeyBuilder

	exists, err := s.redisClient.Exists(ctx, kb.KeyTrafficTotal())
	if err != nil {
		return fmt.Errorf("failed to check if Redis has traffic data: %w", err)
	}
	if exists > 0 {
		s.logger.Info("Redis already contains traffic data, skipping restore")
		return nil
	}

	snapshot, err := s.snapshots.GetLatestSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	now := s.now()
	pipe := s.redisClient.Pipeline()
	if snapshot == nil {
		s.logger.Info("No traffic snapshot found, initializing with zero counters")
		pipe.Set(ctx, kb.KeyTrafficTotal(), 0, 0)
	} else {
		pipe.Set(ctx, kb.KeyTrafficTotal(), snapshot.TotalVisits, 0)

		today := now.Format("2006-01-02")
		if snapshot.SnapshotDate.Format("2006-01-02") == today {
			pipe.Set(ctx, kb.KeyTrafficDaily(today), snapshot.DailyVisits, TTLTrafficDaily)
		}
	}
	pipe.Set(ctx, kb.KeyTrafficLastUpdate(), now.Unix(), TTLTrafficLastUpdate)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to restore snapshot to Redis: %w", err)
	}

	if snapshot != nil {
		s.logger.WithFields(map[string]interface{}{
			"total_visits":  snapshot.TotalVisits,
			"daily_visits":  snapshot.DailyVisits,
			"snapshot_date": snapshot.SnapshotDate,
		}).Info("Successfully restored traffic data from snapshot")
	}
	return nil
}

// saveSnapshot saves current Redis counters to PostgreSQL
func (s *trafficService) saveSnapshot(ctx context.Context) error {
	stats, err := s.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current stats: %w", err)
	}

	now := s.now()
	snapshot := &domain.TrafficSnapshot{
		TotalVisits:    stats.TotalVisits,
		DailyVisits:    stats.DailyVisits,
		UniqueVisits:   stats.UniqueVisits,
		ActiveSessions: stats.ActiveSessions,
		SnapshotDate:   now,
		CreatedAt:      now,
	}

	if err := s.snapshots.CreateSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"total_visits":    snapshot.TotalVisits,
		"daily_visits":    snapshot.DailyVisits,
		"unique_visits":   snapshot.UniqueVisits,
		"active_sessions": snapshot.ActiveSessions,
	}).Debug("Traffic snapshot saved successfully")
	return nil
}

// periodicSnapshot saves a snapshot unless another instance already took
// this interval. When Redis cannot answer the snapshot is saved anyway.
func (s *trafficService) periodicSnapshot(ctx context.Context) error {
	claimed, err := s.redisClient.SetNX(ctx, s.redisClient.KeyBuilder.KeySnapshotLock(), s.instanceID, s.interval)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to claim snapshot interval")
	} else if !claimed {
		return nil
	}
	return s.saveSnapshot(ctx)
}

// snapshotRoutine runs periodic snapshots and prunes old ones once a day
func (s *trafficService) snapshotRoutine(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	lastPrune := time.Time{}
	for {
		select {
		case <-ticker.C:
			if err := s.periodicSnapshot(ctx); err != nil {
				s.logger.WithError(err).Error("Failed to save periodic snapshot")
			}
			if now := s.now(); now.Sub(lastPrune) >= 24*time.Hour {
				if removed, err := s.snapshots.DeleteOldSnapshots(ctx, SnapshotRetentionDays); err != nil {
					s.logger.WithError(err).Warn("Failed to prune old snapshots")
				} else if removed > 0 {
					s.logger.WithField("removed", removed).Info("Pruned old traffic snapshots")
				}
				lastPrune = now
			}
		case <-stop:
			s.logger.Debug("Snapshot routine stopped")
			return
		case <-ctx.Done():
			s.logger.Debug("Snapshot routine cancelled")
			return
		}
	}
}
