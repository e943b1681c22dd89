package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"audioguide/internal/domain"
	"audioguide/internal/repository"
	"audioguide/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unavailable")

// fakeVisitorRepo is an in-memory VisitorRepository
type fakeVisitorRepo struct {
	mu       sync.Mutex
	byID     map[string]*domain.Visitor
	err      error
	lostRace *domain.Visitor // inserted by a "concurrent" registration on the next CreateIfAbsent
	clock    time.Time
}

func newFakeVisitorRepo() *fakeVisitorRepo {
	return &fakeVisitorRepo{byID: map[string]*domain.Visitor{}}
}

func (r *fakeVisitorRepo) put(v *domain.Visitor) *domain.Visitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	cp := *v
	r.byID[v.ID] = &cp
	return v
}

func (r *fakeVisitorRepo) get(id string) *domain.Visitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok {
		return nil
	}
	cp := *v
	return &cp
}

func (r *fakeVisitorRepo) GetByID(ctx context.Context, id string) (*domain.Visitor, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.get(id), nil
}

func (r *fakeVisitorRepo) GetByPhone(ctx context.Context, phone string) (*domain.Visitor, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.byID {
		if v.PhoneNumber == phone {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeVisitorRepo) CreateIfAbsent(ctx context.Context, visitor *domain.Visitor) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	if r.lostRace != nil {
		r.put(r.lostRace)
		r.lostRace = nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.byID {
		if v.PhoneNumber == visitor.PhoneNumber {
			return false, nil
		}
	}
	visitor.ID = uuid.NewString()
	visitor.CreatedAt = r.clock
	cp := *visitor
	r.byID[visitor.ID] = &cp
	return true, nil
}

func (r *fakeVisitorRepo) UpdateGrant(ctx context.Context, visitor *domain.Visitor) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[visitor.ID]
	if !ok {
		return false, nil
	}
	stored.Status = visitor.Status
	stored.ExpiresAt = visitor.ExpiresAt
	if visitor.ActivatedAt != nil {
		stored.ActivatedAt = visitor.ActivatedAt
	}
	*visitor = *stored
	return true, nil
}

func (r *fakeVisitorRepo) List(ctx context.Context, filter domain.VisitorFilter) ([]*domain.Visitor, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	query := strings.ToLower(filter.Query)
	var out []*domain.Visitor
	for _, v := range r.byID {
		if query == "" || strings.Contains(strings.ToLower(v.FullName), query) || strings.Contains(v.PhoneNumber, query) {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// fakeArtifactRepo is an in-memory ArtifactRepository
type fakeArtifactRepo struct {
	mu       sync.Mutex
	byID     map[string]*domain.Artifact
	err      error
	codeHits int
}

func newFakeArtifactRepo() *fakeArtifactRepo {
	return &fakeArtifactRepo{byID: map[string]*domain.Artifact{}}
}

func cloneArtifact(a *domain.Artifact) *domain.Artifact {
	cp := *a
	cp.Title = domain.Localized{}
	cp.Description = domain.Localized{}
	cp.AudioURLs = domain.Localized{}
	cp.ListenCounts = map[string]int64{}
	for k, v := range a.Title {
		cp.Title[k] = v
	}
	for k, v := range a.Description {
		cp.Description[k] = v
	}
	for k, v := range a.AudioURLs {
		cp.AudioURLs[k] = v
	}
	for k, v := range a.ListenCounts {
		cp.ListenCounts[k] = v
	}
	return &cp
}

func (r *fakeArtifactRepo) Create(ctx context.Context, input *domain.ArtifactInput) (*domain.Artifact, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.ArtifactCode == input.ArtifactCode {
			return nil, repository.ErrDuplicate
		}
	}
	artifact := &domain.Artifact{
		ID:           uuid.NewString(),
		ArtifactCode: input.ArtifactCode,
		ImageURL:     input.ImageURL,
		Title:        input.Title,
		Description:  input.Description,
		AudioURLs:    input.AudioURLs,
		ListenCounts: map[string]int64{},
	}
	r.byID[artifact.ID] = cloneArtifact(artifact)
	return cloneArtifact(artifact), nil
}

func (r *fakeArtifactRepo) Update(ctx context.Context, id string, input *domain.ArtifactInput) (*domain.Artifact, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	stored.ImageURL = input.ImageURL
	stored.Title = input.Title
	stored.Description = input.Description
	stored.AudioURLs = input.AudioURLs
	return cloneArtifact(stored), nil
}

func (r *fakeArtifactRepo) Delete(ctx context.Context, id string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byID[id]
	delete(r.byID, id)
	return ok, nil
}

func (r *fakeArtifactRepo) GetByID(ctx context.Context, id string) (*domain.Artifact, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		return cloneArtifact(a), nil
	}
	return nil, nil
}

func (r *fakeArtifactRepo) GetByCode(ctx context.Context, code string) (*domain.Artifact, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codeHits++
	for _, a := range r.byID {
		if a.ArtifactCode == code {
			return cloneArtifact(a), nil
		}
	}
	return nil, nil
}

func (r *fakeArtifactRepo) List(ctx context.Context) ([]*domain.Artifact, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Artifact, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, cloneArtifact(a))
	}
	return out, nil
}

func (r *fakeArtifactRepo) IncrementListenCount(ctx context.Context, id, lang string) (int64, bool, error) {
	if r.err != nil {
		return 0, false, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return 0, false, nil
	}
	if a.ListenCounts == nil {
		a.ListenCounts = map[string]int64{}
	}
	a.ListenCounts[lang]++
	return a.ListenCounts[lang], true, nil
}

func (r *fakeArtifactRepo) hits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codeHits
}

// fakeTrafficRepo is an in-memory TrafficRepository
type fakeTrafficRepo struct {
	mu        sync.Mutex
	snapshots []*domain.TrafficSnapshot
	deleted   int
}

func (r *fakeTrafficRepo) CreateSnapshot(ctx context.Context, snapshot *domain.TrafficSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *snapshot
	r.snapshots = append(r.snapshots, &cp)
	return nil
}

func (r *fakeTrafficRepo) GetLatestSnapshot(ctx context.Context) (*domain.TrafficSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil, nil
	}
	cp := *r.snapshots[len(r.snapshots)-1]
	return &cp, nil
}

func (r *fakeTrafficRepo) DeleteOldSnapshots(ctx context.Context, retentionDays int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted++
	return 0, nil
}

func (r *fakeTrafficRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

// mockAuthService is a testify mock of AuthService
type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*domain.AuthSession)
	return session, args.Error(1)
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password string) (*domain.SignUpResult, error) {
	args := m.Called(ctx, email, password)
	result, _ := args.Get(0).(*domain.SignUpResult)
	return result, args.Error(1)
}

func (m *mockAuthService) SignOut(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

func (m *mockAuthService) ValidateToken(ctx context.Context, accessToken string) (*domain.AuthClaims, error) {
	args := m.Called(ctx, accessToken)
	claims, _ := args.Get(0).(*domain.AuthClaims)
	return claims, args.Error(1)
}

// setupTestRedis starts a miniredis server and a client bound to it
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
