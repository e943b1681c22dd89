package service

import (
	"context"
	"testing"
	"time"

	"audioguide/internal/domain"
	"audioguide/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trafficNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestTrafficService(t *testing.T) (*trafficService, *fakeTrafficRepo) {
	t.Helper()
	_, client := setupTestRedis(t)
	repo := &fakeTrafficRepo{}
	svc := NewTrafficService(client, repo, logger.Nop()).(*trafficService)
	svc.now = func() time.Time { return trafficNow }
	svc.limiter.now = svc.now
	return svc, repo
}

func TestTrafficService_RecordVisitAndStats(t *testing.T) {
	svc, _ := newTestTrafficService(t)
	ctx := context.Background()

	for _, visit := range []struct{ ip, ua string }{
		{"10.0.0.1", "phone"},
		{"10.0.0.1", "phone"},
		{"10.0.0.2", "tablet"},
	} {
		info, err := svc.RecordVisit(ctx, visit.ip, visit.ua)
		require.NoError(t, err)
		assert.True(t, info.IsAllowed)
	}

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalVisits)
	assert.Equal(t, int64(3), stats.DailyVisits)
	assert.Equal(t, int64(2), stats.UniqueVisits)
	assert.Equal(t, trafficNow.Unix(), stats.LastUpdated.Unix())
}

func TestTrafficService_RateLimitedVisitsAreNotCounted(t *testing.T) {
	svc, _ := newTestTrafficService(t)
	ctx := context.Background()

	for i := 0; i < TrafficRateLimitRequests; i++ {
		_, err := svc.RecordVisit(ctx, "10.0.0.9", "bot")
		require.NoError(t, err)
	}

	info, err := svc.RecordVisit(ctx, "10.0.0.9", "bot")
	require.NoError(t, err)
	assert.False(t, info.IsAllowed)
	assert.Equal(t, int64(TrafficRateLimitRequests+1), info.RequestCount)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(TrafficRateLimitRequests), stats.TotalVisits)
}

func TestTrafficService_ActiveSessions(t *testing.T) {
	svc, _ := newTestTrafficService(t)
	ctx := context.Background()

	future := trafficNow.Add(2 * time.Hour)
	past := trafficNow.Add(-time.Minute)

	require.NoError(t, svc.TouchSession(ctx, &domain.Session{ID: "v1", Name: "A", ExpiresAt: &future}))
	require.NoError(t, svc.TouchSession(ctx, &domain.Session{ID: "v1", Name: "A", ExpiresAt: &future}))
	require.NoError(t, svc.TouchSession(ctx, &domain.Session{ID: "v2", Name: "B", ExpiresAt: &future}))
	require.NoError(t, svc.TouchSession(ctx, &domain.Session{ID: "v3", Name: "C", ExpiresAt: &past}))
	require.NoError(t, svc.TouchSession(ctx, &domain.Session{ID: "v4", Name: "D"}))
	require.NoError(t, svc.TouchSession(ctx, nil))

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ActiveSessions)

	// Three hours later both grants have lapsed
	svc.now = func() time.Time { return trafficNow.Add(3 * time.Hour) }
	stats, err = svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.ActiveSessions)
}

func TestTrafficService_RestoreFromSnapshot(t *testing.T) {
	svc, repo := newTestTrafficService(t)
	ctx := context.Background()

	repo.snapshots = append(repo.snapshots, &domain.TrafficSnapshot{
		TotalVisits:  120,
		DailyVisits:  7,
		SnapshotDate: trafficNow.Add(-time.Hour),
	})

	require.NoError(t, svc.restoreFromSnapshot(ctx))

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(120), stats.TotalVisits)
	assert.Equal(t, int64(7), stats.DailyVisits)

	// A second restore leaves live counters alone
	_, err = svc.RecordVisit(ctx, "10.0.0.1", "phone")
	require.NoError(t, err)
	require.NoError(t, svc.restoreFromSnapshot(ctx))
	stats, err = svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(121), stats.TotalVisits)
}

func TestTrafficService_RestoreSkipsYesterdaysDailyCount(t *testing.T) {
	svc, repo := newTestTrafficService(t)
	ctx := context.Background()

	repo.snapshots = append(repo.snapshots, &domain.TrafficSnapshot{
		TotalVisits:  50,
		DailyVisits:  9,
		SnapshotDate: trafficNow.Add(-24 * time.Hour),
	})

	require.NoError(t, svc.restoreFromSnapshot(ctx))

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), stats.TotalVisits)
	assert.Equal(t, int64(0), stats.DailyVisits)
}

func TestTrafficService_StartStopSnapshots(t *testing.T) {
	svc, repo := newTestTrafficService(t)
	svc.interval = 10 * time.Millisecond
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Start(ctx))

	_, err := svc.RecordVisit(ctx, "10.0.0.1", "phone")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return repo.count() > 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, svc.Stop(ctx))
	require.NoError(t, svc.Stop(ctx))

	latest, err := repo.GetLatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest.TotalVisits)
}

func TestTrafficService_PeriodicSnapshotOncePerInterval(t *testing.T) {
	mr, client := setupTestRedis(t)
	repo := &fakeTrafficRepo{}
	first := NewTrafficService(client, repo, logger.Nop()).(*trafficService)
	second := NewTrafficService(client, repo, logger.Nop()).(*trafficService)
	ctx := context.Background()

	require.NoError(t, first.periodicSnapshot(ctx))
	require.NoError(t, second.periodicSnapshot(ctx))
	require.NoError(t, first.periodicSnapshot(ctx))
	assert.Equal(t, 1, repo.count())

	mr.FastForward(DefaultSnapshotInterval)
	require.NoError(t, second.periodicSnapshot(ctx))
	assert.Equal(t, 2, repo.count())
}

func TestRateLimiter_Register(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewRegisterRateLimiter(client, 2, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		info, err := limiter.Allow(ctx, "192.168.1.1")
		require.NoError(t, err)
		assert.Equal(t, int64(i), info.RequestCount)
		assert.Equal(t, i <= 2, info.IsAllowed)
	}

	// Another IP has its own window
	info, err := limiter.Allow(ctx, "192.168.1.2")
	require.NoError(t, err)
	assert.True(t, info.IsAllowed)

	// The window resets after it expires
	mr.FastForward(time.Minute + time.Second)
	info, err = limiter.Allow(ctx, "192.168.1.1")
	require.NoError(t, err)
	assert.True(t, info.IsAllowed)
	assert.Equal(t, int64(1), info.RequestCount)
}

func TestRateLimiter_Defaults(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewRegisterRateLimiter(client, 0, 0)

	assert.Equal(t, int64(RegisterRateLimitRequests), limiter.limit)
	assert.Equal(t, RegisterRateLimitWindow, limiter.window)
}
