package domain

import (
	"time"
)

// GrantDuration is how long a registration or reactivation lets a visitor use the guide
const GrantDuration = 3 * time.Hour

// VisitorStatus is the staff-controlled part of a grant
type VisitorStatus string

const (
	VisitorStatusActive   VisitorStatus = "active"
	VisitorStatusInactive VisitorStatus = "inactive"
)

// AccessState is the badge shown to staff for a visitor
type AccessState string

const (
	AccessActive   AccessState = "active"
	AccessExpired  AccessState = "expired"
	AccessInactive AccessState = "inactive"
)

// Visitor is a registered museum guest. PhoneNumber is the natural key.
type Visitor struct {
	ID          string        `json:"id" db:"id"`
	FullName    string        `json:"full_name" db:"full_name"`
	PhoneNumber string        `json:"phone_number" db:"phone_number"`
	Status      VisitorStatus `json:"status" db:"status"`
	ActivatedAt *time.Time    `json:"activated_at" db:"activated_at"`
	ExpiresAt   *time.Time    `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// InSession reports whether the visitor is active with an expiry still in the future
func (v *Visitor) InSession(now time.Time) bool {
	return v.Status == VisitorStatusActive && v.ExpiresAt != nil && v.ExpiresAt.After(now)
}

// AccessState derives the staff-facing badge
func (v *Visitor) AccessState(now time.Time) AccessState {
	switch {
	case v.Status != VisitorStatusActive:
		return AccessInactive
	case v.InSession(now):
		return AccessActive
	default:
		return AccessExpired
	}
}

// Grant marks the visitor active from now for d
func (v *Visitor) Grant(now time.Time, d time.Duration) {
	activatedAt := now
	expiresAt := now.Add(d)
	v.Status = VisitorStatusActive
	v.ActivatedAt = &activatedAt
	v.ExpiresAt = &expiresAt
}

// Revoke marks the visitor inactive and clears the expiry
func (v *Visitor) Revoke() {
	v.Status = VisitorStatusInactive
	v.ExpiresAt = nil
}

// Session returns the client-held mirror of this visitor's grant
func (v *Visitor) Session() *Session {
	return &Session{
		ID:          v.ID,
		Name:        v.FullName,
		Status:      v.Status,
		ActivatedAt: v.ActivatedAt,
		ExpiresAt:   v.ExpiresAt,
	}
}

// RegisterRequest is the body of a visitor registration
type RegisterRequest struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
}

// VisitorFilter narrows the staff visitor listing
type VisitorFilter struct {
	Query string // case-insensitive substring of name or phone
	Limit int
}
