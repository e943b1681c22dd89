package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audioguide/internal/domain"
	"audioguide/pkg/database"
	"github.com/jackc/pgx/v5"
)

// trafficRepository handles traffic snapshot operations with PostgreSQL
type trafficRepository struct {
	db *database.PostgresDB
}

// NewTrafficRepository creates a new traffic repository
func NewTrafficRepository(db *database.PostgresDB) TrafficRepository {
	return &trafficRepository{
		db: db,
	}
}

// CreateSnapshot creates or replaces the snapshot for the snapshot date
func (r *trafficRepository) CreateSnapshot(ctx context.Context, snapshot *domain.TrafficSnapshot) error {
	query := `
		INSERT INTO traffic_snapshots (total_visits, daily_visits, unique_visits, active_sessions, snapshot_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (snapshot_date) DO UPDATE SET
			total_visits = EXCLUDED.total_visits,
			daily_visits = EXCLUDED.daily_visits,
			unique_visits = EXCLUDED.unique_visits,
			active_sessions = EXCLUDED.active_sessions,
			created_at = EXCLUDED.created_at
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		snapshot.TotalVisits,
		snapshot.DailyVisits,
		snapshot.UniqueVisits,
		snapshot.ActiveSessions,
		snapshot.SnapshotDate.Format("2006-01-02"),
		snapshot.CreatedAt,
	).Scan(&snapshot.ID, &snapshot.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create traffic snapshot: %w", err)
	}

	return nil
}

// GetLatestSnapshot retrieves the most recent traffic snapshot
func (r *trafficRepository) GetLatestSnapshot(ctx context.Context) (*domain.TrafficSnapshot, error) {
	query := `
		SELECT id, total_visits, daily_visits, unique_visits, active_sessions, snapshot_date, created_at
		FROM traffic_snapshots
		ORDER BY snapshot_date DESC, created_at DESC
		LIMIT 1
	`

	snapshot := &domain.TrafficSnapshot{}
	err := r.db.GetReadPool().QueryRow(ctx, query).Scan(
		&snapshot.ID,
		&snapshot.TotalVisits,
		&snapshot.DailyVisits,
		&snapshot.UniqueVisits,
		&snapshot.ActiveSessions,
		&snapshot.SnapshotDate,
		&snapshot.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No snapshots exist yet
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest traffic snapshot: %w", err)
	}

	return snapshot, nil
}

// DeleteOldSnapshots removes snapshots older than the specified retention period
func (r *trafficRepository) DeleteOldSnapshots(ctx context.Context, retentionDays int) (int64, error) {
	query := `
		DELETE FROM traffic_snapshots
		WHERE snapshot_date < $1
	`

	cutoffDate := time.Now().AddDate(0, 0, -retentionDays).Format("2006-01-02")
	result, err := r.db.Pool.Exec(ctx, query, cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old traffic snapshots: %w", err)
	}

	return result.RowsAffected(), nil
}
