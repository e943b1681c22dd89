package handler

import (
	"context"
	"io"

	"audioguide/internal/domain"
	"audioguide/pkg/errors"

	"github.com/stretchr/testify/mock"
)

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	args := m.Called(ctx, email, password)
	if s := args.Get(0); s != nil {
		return s.(*domain.AuthSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password string) (*domain.SignUpResult, error) {
	args := m.Called(ctx, email, password)
	if r := args.Get(0); r != nil {
		return r.(*domain.SignUpResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) SignOut(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

// ValidateToken accepts "staff-token" without an expectation so admin tests
// only set up what they exercise
func (m *mockAuthService) ValidateToken(ctx context.Context, accessToken string) (*domain.AuthClaims, error) {
	if accessToken == staffToken {
		return &domain.AuthClaims{Sub: "staff-1", Email: "staff@museum.vn", Role: "authenticated"}, nil
	}
	return nil, errors.NewAuthenticationError("Invalid JWT token")
}

const staffToken = "staff-token"

type mockRegistryService struct{ mock.Mock }

func (m *mockRegistryService) RegisterOrResume(ctx context.Context, fullName, phone string) (*domain.Visitor, error) {
	args := m.Called(ctx, fullName, phone)
	return visitorResult(args)
}

func (m *mockRegistryService) Reactivate(ctx context.Context, id string) (*domain.Visitor, error) {
	return visitorResult(m.Called(ctx, id))
}

func (m *mockRegistryService) Deactivate(ctx context.Context, id string) (*domain.Visitor, error) {
	return visitorResult(m.Called(ctx, id))
}

func (m *mockRegistryService) List(ctx context.Context, query string) ([]*domain.Visitor, error) {
	args := m.Called(ctx, query)
	if v := args.Get(0); v != nil {
		return v.([]*domain.Visitor), args.Error(1)
	}
	return nil, args.Error(1)
}

func visitorResult(args mock.Arguments) (*domain.Visitor, error) {
	if v := args.Get(0); v != nil {
		return v.(*domain.Visitor), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockArtifactService struct{ mock.Mock }

func (m *mockArtifactService) LookupByCode(ctx context.Context, code string) (*domain.Artifact, error) {
	return artifactResult(m.Called(ctx, code))
}

func (m *mockArtifactService) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	return artifactResult(m.Called(ctx, id))
}

func (m *mockArtifactService) List(ctx context.Context) ([]*domain.Artifact, error) {
	args := m.Called(ctx)
	if a := args.Get(0); a != nil {
		return a.([]*domain.Artifact), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockArtifactService) Create(ctx context.Context, input *domain.ArtifactInput) (*domain.Artifact, error) {
	return artifactResult(m.Called(ctx, input))
}

func (m *mockArtifactService) Update(ctx context.Context, id string, input *domain.ArtifactInput) (*domain.Artifact, error) {
	return artifactResult(m.Called(ctx, id, input))
}

func (m *mockArtifactService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockArtifactService) Stats(ctx context.Context, id string) (*domain.ArtifactStats, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*domain.ArtifactStats), args.Error(1)
	}
	return nil, args.Error(1)
}

func artifactResult(args mock.Arguments) (*domain.Artifact, error) {
	if a := args.Get(0); a != nil {
		return a.(*domain.Artifact), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockListenService struct{ mock.Mock }

func (m *mockListenService) RecordListen(ctx context.Context, artifactID string, lang domain.Language) (int64, error) {
	args := m.Called(ctx, artifactID, lang)
	return args.Get(0).(int64), args.Error(1)
}

type mockStaffService struct{ mock.Mock }

func (m *mockStaffService) Provision(ctx context.Context, email, password string) (*domain.StaffUser, error) {
	args := m.Called(ctx, email, password)
	if u := args.Get(0); u != nil {
		return u.(*domain.StaffUser), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockUploadService struct{ mock.Mock }

func (m *mockUploadService) UploadAudio(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*domain.UploadResult, error) {
	data, _ := io.ReadAll(body)
	args := m.Called(ctx, filename, contentType, size, string(data))
	if r := args.Get(0); r != nil {
		return r.(*domain.UploadResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTrafficService struct{ mock.Mock }

func (m *mockTrafficService) Start(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockTrafficService) Stop(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockTrafficService) RecordVisit(ctx context.Context, ipAddress, userAgent string) (*domain.RateLimitInfo, error) {
	args := m.Called(ctx, ipAddress, userAgent)
	if info := args.Get(0); info != nil {
		return info.(*domain.RateLimitInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTrafficService) TouchSession(ctx context.Context, session *domain.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockTrafficService) GetStats(ctx context.Context) (*domain.TrafficStats, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.(*domain.TrafficStats), args.Error(1)
	}
	return nil, args.Error(1)
}
