package guide

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"audioguide/internal/domain"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
)

// AdminSessionKey is where the staff token is persisted
const AdminSessionKey = "adminSession"

// AuthAPI is the part of the server a staff session calls
type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error)
	SignOut(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (*domain.StaffUser, error)
}

// AdminSession holds the signed-in staff identity and notifies subscribers
// when it changes.
type AdminSession struct {
	api       AuthAPI
	persister Persister
	logger    *logger.Logger

	mu     sync.Mutex
	token  string
	user   *domain.StaffUser
	subs   map[int]func(*domain.StaffUser)
	nextID int
	closed bool
}

type storedAdminSession struct {
	AccessToken string `json:"access_token"`
}

func NewAdminSession(api AuthAPI, persister Persister, logger *logger.Logger) *AdminSession {
	return &AdminSession{
		api:       api,
		persister: persister,
		logger:    logger.Named("admin_session"),
		subs:      make(map[int]func(*domain.StaffUser)),
	}
}

// Init loads the persisted token and fetches the identity behind it. A token
// the server no longer accepts is discarded and Init returns nil user.
func (s *AdminSession) Init(ctx context.Context) (*domain.StaffUser, error) {
	data, ok, err := s.persister.Get(AdminSessionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.set("", nil)
		return nil, nil
	}

	var stored storedAdminSession
	if err := json.Unmarshal(data, &stored); err != nil || stored.AccessToken == "" {
		s.logger.WithError(err).Warn("Discarding malformed admin session")
		s.set("", nil)
		return nil, s.persister.Delete(AdminSessionKey)
	}

	user, err := s.api.Me(ctx, stored.AccessToken)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeAuthentication) {
			s.set("", nil)
			return nil, s.persister.Delete(AdminSessionKey)
		}
		return nil, err
	}

	s.set(stored.AccessToken, user)
	return user, nil
}

// SignIn authenticates and persists the new token
func (s *AdminSession) SignIn(ctx context.Context, email, password string) (*domain.StaffUser, error) {
	session, err := s.api.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(storedAdminSession{AccessToken: session.AccessToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode admin session: %w", err)
	}
	if err := s.persister.Set(AdminSessionKey, data); err != nil {
		return nil, err
	}

	user := session.User
	if user == nil {
		user = &domain.StaffUser{Email: email}
	}
	s.set(session.AccessToken, user)
	return user, nil
}

// SignOut ends the session on the server when possible and always forgets it locally
func (s *AdminSession) SignOut(ctx context.Context) error {
	token := s.Token()
	if token != "" {
		if err := s.api.SignOut(ctx, token); err != nil {
			s.logger.WithError(err).Warn("Server sign-out failed")
		}
	}
	s.set("", nil)
	return s.persister.Delete(AdminSessionKey)
}

// Current returns the signed-in staff user, or nil
func (s *AdminSession) Current() *domain.StaffUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Token returns the access token for authenticated calls
func (s *AdminSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Subscribe registers fn for identity changes and returns its unsubscribe func
func (s *AdminSession) Subscribe(fn func(*domain.StaffUser)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Close drops every subscriber; later changes notify nobody
func (s *AdminSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[int]func(*domain.StaffUser))
}

func (s *AdminSession) set(token string, user *domain.StaffUser) {
	s.mu.Lock()
	s.token = token
	s.user = user
	subs := make([]func(*domain.StaffUser), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(user)
	}
}
