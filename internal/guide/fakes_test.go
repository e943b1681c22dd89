package guide

import (
	"context"
	"sync"

	"audioguide/internal/domain"
	"audioguide/pkg/errors"
)

type fakeAPI struct {
	mu sync.Mutex

	session       *domain.Session
	registerErr   error
	registerCalls int

	artifacts   map[string]*domain.Artifact
	lookupCalls int
	// lookupGate, when set, is called before answering a lookup
	lookupGate func(code string)

	listens   map[string]int64
	listenErr error

	visits   int
	visitErr error
	online   int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		artifacts: make(map[string]*domain.Artifact),
		listens:   make(map[string]int64),
	}
}

func (f *fakeAPI) Register(ctx context.Context, fullName, phone string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.session, nil
}

func (f *fakeAPI) LookupArtifact(ctx context.Context, code string) (*domain.Artifact, error) {
	f.mu.Lock()
	f.lookupCalls++
	gate := f.lookupGate
	f.mu.Unlock()

	if gate != nil {
		gate(code)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	artifact, ok := f.artifacts[code]
	if !ok {
		return nil, errors.NewNotFoundError("Artifact not found. Please check the code and try again.")
	}
	return artifact, nil
}

func (f *fakeAPI) RecordListen(ctx context.Context, artifactID string, lang domain.Language) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listenErr != nil {
		return 0, f.listenErr
	}
	key := artifactID + "/" + string(lang)
	f.listens[key]++
	return f.listens[key], nil
}

func (f *fakeAPI) RecordVisit(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visitErr != nil {
		return f.visitErr
	}
	f.visits++
	return nil
}

func (f *fakeAPI) Stats(ctx context.Context) (*domain.TrafficStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &domain.TrafficStats{TotalVisits: int64(f.visits), ActiveSessions: f.online}, nil
}

func (f *fakeAPI) visitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visits
}

func (f *fakeAPI) listenCount(artifactID string, lang domain.Language) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listens[artifactID+"/"+string(lang)]
}
