package repository

import (
	"context"
	"errors"

	"audioguide/internal/domain"
)

// ErrDuplicate is returned when a write violates a unique constraint
var ErrDuplicate = errors.New("duplicate key")

// Lookups return (nil, nil) when no row matches.

// VisitorRepository defines the interface for visitor data operations
type VisitorRepository interface {
	// GetByID retrieves a visitor by ID
	GetByID(ctx context.Context, id string) (*domain.Visitor, error)

	// GetByPhone retrieves a visitor by exact phone number
	GetByPhone(ctx context.Context, phone string) (*domain.Visitor, error)

	// CreateIfAbsent inserts the visitor unless the phone number is taken.
	// It reports whether a row was inserted and fills ID and CreatedAt when so.
	CreateIfAbsent(ctx context.Context, visitor *domain.Visitor) (bool, error)

	// UpdateGrant overwrites status and expires_at, and activated_at when set.
	// The visitor is refreshed from the stored row. Returns false when the
	// visitor does not exist.
	UpdateGrant(ctx context.Context, visitor *domain.Visitor) (bool, error)

	// List returns visitors newest first
	List(ctx context.Context, filter domain.VisitorFilter) ([]*domain.Visitor, error)
}

// ArtifactRepository defines the interface for audio guide records
type ArtifactRepository interface {
	// Create inserts an artifact with empty listen counts. Returns ErrDuplicate
	// when the code is taken.
	Create(ctx context.Context, input *domain.ArtifactInput) (*domain.Artifact, error)

	// Update rewrites image, title, description and audio. The code and
	// listen counts are left alone.
	Update(ctx context.Context, id string, input *domain.ArtifactInput) (*domain.Artifact, error)

	// Delete removes an artifact and reports whether it existed
	Delete(ctx context.Context, id string) (bool, error)

	// GetByID retrieves an artifact by ID
	GetByID(ctx context.Context, id string) (*domain.Artifact, error)

	// GetByCode retrieves an artifact by its normalized code
	GetByCode(ctx context.Context, code string) (*domain.Artifact, error)

	// List returns artifacts newest first
	List(ctx context.Context) ([]*domain.Artifact, error)

	// IncrementListenCount adds one to listen_counts[lang] in a single
	// statement and returns the new value. Returns false when the artifact
	// does not exist.
	IncrementListenCount(ctx context.Context, id, lang string) (int64, bool, error)
}

// StaffUserRepository stores staff accounts for local authentication
type StaffUserRepository interface {
	// GetByEmail returns the user and its password hash
	GetByEmail(ctx context.Context, email string) (*domain.StaffUser, string, error)

	// GetByID retrieves a staff user by ID
	GetByID(ctx context.Context, id string) (*domain.StaffUser, error)

	// Create inserts a user. Returns ErrDuplicate when the email is taken.
	Create(ctx context.Context, email, passwordHash string) (*domain.StaffUser, error)
}

// TrafficRepository defines the interface for traffic snapshot operations
type TrafficRepository interface {
	// CreateSnapshot upserts the snapshot for its date
	CreateSnapshot(ctx context.Context, snapshot *domain.TrafficSnapshot) error

	// GetLatestSnapshot retrieves the most recent snapshot
	GetLatestSnapshot(ctx context.Context) (*domain.TrafficSnapshot, error)

	// DeleteOldSnapshots removes snapshots older than the retention period
	DeleteOldSnapshots(ctx context.Context, retentionDays int) (int64, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Visitor   VisitorRepository
	Artifact  ArtifactRepository
	StaffUser StaffUserRepository
	Traffic   TrafficRepository
}
