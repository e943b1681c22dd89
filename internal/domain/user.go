package domain

import "time"

// StaffUser is an administrator account
type StaffUser struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Identity is a login method attached to a staff user
type Identity struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
}

// SignUpResult is what an identity provider returns from sign-up
type SignUpResult struct {
	User       *StaffUser `json:"user"`
	Identities []Identity `json:"identities"`
}

// AlreadyExists reports the provider's duplicate-email signal: an identities
// list that is present but empty.
func (r *SignUpResult) AlreadyExists() bool {
	return r.Identities != nil && len(r.Identities) == 0
}

// AuthSession is an authenticated staff session
type AuthSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	User         *StaffUser `json:"user"`
}

// RoleStaff is the role claim carried by signed-in staff tokens
const RoleStaff = "authenticated"

// AuthClaims represents JWT token claims
type AuthClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Aud   string `json:"aud"`
	Iss   string `json:"iss"`
	Iat   int64  `json:"iat"`
	Exp   int64  `json:"exp"`
}

// IsStaff reports whether the token was issued to a signed-in staff account
// rather than an anonymous or service key.
func (c *AuthClaims) IsStaff() bool {
	return c.Role == RoleStaff
}

// Credentials is a sign-in or sign-up request
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
