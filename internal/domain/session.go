package domain

import "time"

// Session is the client-held copy of a visitor's grant, persisted across restarts
type Session struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Status      VisitorStatus `json:"status"`
	ActivatedAt *time.Time    `json:"activated_at"`
	ExpiresAt   *time.Time    `json:"expires_at"`
}

// Expired reports whether expires_at is set and not after now.
// A session without an expiry never expires on the client.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// Valid reports whether the payload carries the fields a session needs
func (s *Session) Valid() bool {
	return s.ID != "" && s.Name != ""
}
