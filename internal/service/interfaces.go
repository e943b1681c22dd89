package service

import (
	"context"
	"io"

	"audioguide/internal/domain"
)

// AuthService defines staff authentication. Implemented by the Supabase and
// local providers in the auth package.
type AuthService interface {
	// SignIn exchanges email and password for a session
	SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error)

	// SignUp creates an identity. A duplicate email is reported through
	// SignUpResult.AlreadyExists, not as an error.
	SignUp(ctx context.Context, email, password string) (*domain.SignUpResult, error)

	// SignOut ends the session behind the access token
	SignOut(ctx context.Context, accessToken string) error

	// ValidateToken verifies an access token and returns its claims
	ValidateToken(ctx context.Context, accessToken string) (*domain.AuthClaims, error)
}

// RegistryService defines visitor registration and staff grant management
type RegistryService interface {
	// RegisterOrResume creates a visitor for an unseen phone number or resumes
	// the existing unexpired grant
	RegisterOrResume(ctx context.Context, fullName, phone string) (*domain.Visitor, error)

	// Reactivate grants a fresh session regardless of the current state
	Reactivate(ctx context.Context, id string) (*domain.Visitor, error)

	// Deactivate revokes the grant regardless of the current state
	Deactivate(ctx context.Context, id string) (*domain.Visitor, error)

	// List returns visitors newest first, filtered by name or phone
	List(ctx context.Context, query string) ([]*domain.Visitor, error)
}

// ArtifactService defines artifact lookup and staff CRUD
type ArtifactService interface {
	// LookupByCode finds an artifact by code, case-insensitively
	LookupByCode(ctx context.Context, code string) (*domain.Artifact, error)

	Get(ctx context.Context, id string) (*domain.Artifact, error)
	List(ctx context.Context) ([]*domain.Artifact, error)
	Create(ctx context.Context, input *domain.ArtifactInput) (*domain.Artifact, error)
	Update(ctx context.Context, id string, input *domain.ArtifactInput) (*domain.Artifact, error)
	Delete(ctx context.Context, id string) error

	// Stats returns listen counts per language
	Stats(ctx context.Context, id string) (*domain.ArtifactStats, error)
}

// ListenService records narration plays
type ListenService interface {
	// RecordListen atomically increments the count for one language and
	// returns the new value
	RecordListen(ctx context.Context, artifactID string, lang domain.Language) (int64, error)
}

// StaffService provisions administrator accounts
type StaffService interface {
	Provision(ctx context.Context, email, password string) (*domain.StaffUser, error)
}

// UploadService stores narration files
type UploadService interface {
	// UploadAudio stores an mp3 and returns its public URL
	UploadAudio(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*domain.UploadResult, error)
}

// TrafficService defines the interface for page-visit tracking operations
type TrafficService interface {
	// Start restores counters and begins periodic snapshots
	Start(ctx context.Context) error

	// Stop gracefully shuts down the traffic service
	Stop(ctx context.Context) error

	// RecordVisit records a visit from the given IP address and user agent
	RecordVisit(ctx context.Context, ipAddress, userAgent string) (*domain.RateLimitInfo, error)

	// TouchSession marks a visitor session as active until expiresAt
	TouchSession(ctx context.Context, session *domain.Session) error

	// GetStats retrieves current traffic statistics
	GetStats(ctx context.Context) (*domain.TrafficStats, error)
}

// ObjectStorage is a bucket that serves uploaded files publicly
type ObjectStorage interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader) error
	PublicURL(path string) string
}

// Services aggregates all service interfaces
type Services struct {
	Auth     AuthService
	Registry RegistryService
	Artifact ArtifactService
	Listen   ListenService
	Staff    StaffService
	Upload   UploadService
	Traffic  TrafficService // nil without Redis
}
