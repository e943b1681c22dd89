package guide

import (
	"encoding/json"
	"fmt"
	"time"

	"audioguide/internal/domain"
	"audioguide/pkg/logger"
)

// SessionKey is the only key the session store reads or writes
const SessionKey = "visitorSession"

// SessionStore persists the visitor's grant on the client
type SessionStore struct {
	persister Persister
	logger    *logger.Logger
	now       func() time.Time
}

// NewSessionStore creates a session store over persister
func NewSessionStore(persister Persister, logger *logger.Logger) *SessionStore {
	return &SessionStore{
		persister: persister,
		logger:    logger,
		now:       time.Now,
	}
}

// Save overwrites the stored session
func (s *SessionStore) Save(session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.persister.Set(SessionKey, data)
}

// Load returns the stored session, or nil when there is none. A malformed or
// expired session is discarded. A session without expires_at is kept.
func (s *SessionStore) Load() (*domain.Session, error) {
	data, ok, err := s.persister.Get(SessionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil || !session.Valid() {
		s.logger.WithError(err).Warn("Discarding malformed visitor session")
		return nil, s.Clear()
	}

	if session.Expired(s.now()) {
		s.logger.WithField("visitor_id", session.ID).Info("Discarding expired visitor session")
		return nil, s.Clear()
	}

	return &session, nil
}

// Clear removes the stored session
func (s *SessionStore) Clear() error {
	return s.persister.Delete(SessionKey)
}
