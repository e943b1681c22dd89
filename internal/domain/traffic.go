package domain

import (
	"time"
)

// TrafficSnapshot is a copy of the Redis traffic counters stored in PostgreSQL
type TrafficSnapshot struct {
	ID             int64     `json:"id" db:"id"`
	TotalVisits    int64     `json:"total_visits" db:"total_visits"`
	DailyVisits    int64     `json:"daily_visits" db:"daily_visits"`
	UniqueVisits   int64     `json:"unique_visits" db:"unique_visits"`
	ActiveSessions int64     `json:"active_sessions" db:"active_sessions"`
	SnapshotDate   time.Time `json:"snapshot_date" db:"snapshot_date"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// TrafficStats represents real-time page-visit statistics from Redis
type TrafficStats struct {
	TotalVisits    int64     `json:"total_visits"`
	DailyVisits    int64     `json:"daily_visits"`
	UniqueVisits   int64     `json:"unique_visits"`
	ActiveSessions int64     `json:"active_sessions"`
	LastUpdated    time.Time `json:"last_updated"`
}

// RateLimitInfo represents rate limiting information
type RateLimitInfo struct {
	Key          string        `json:"-"`
	RequestCount int64         `json:"request_count"`
	Limit        int64         `json:"limit"`
	WindowStart  time.Time     `json:"window_start"`
	TTL          time.Duration `json:"ttl"`
	IsAllowed    bool          `json:"is_allowed"`
}
