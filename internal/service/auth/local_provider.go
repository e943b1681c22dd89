package auth

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"audioguide/internal/domain"
	"audioguide/internal/repository"
	"audioguide/internal/service"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// LocalProvider authenticates staff against the staff_users table
type LocalProvider struct {
	users  repository.StaffUserRepository
	tokens *TokenValidator
	ttl    time.Duration
	cost   int
	logger *logger.Logger
}

// NewLocalProvider creates the database-backed identity provider
func NewLocalProvider(users repository.StaffUserRepository, tokens *TokenValidator, logger *logger.Logger) service.AuthService {
	return &LocalProvider{
		users:  users,
		tokens: tokens,
		ttl:    DefaultTokenTTL,
		cost:   bcrypt.DefaultCost,
		logger: logger,
	}
}

// SignIn checks the password and issues a signed session token
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, hash, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		p.logger.WithError(err).Error("Failed to load staff user")
		return nil, errors.NewTransientError("Could not sign in. Please try again.", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, errors.NewAuthenticationError("Invalid login credentials")
	}

	token, expiresAt, err := p.tokens.Issue(user, p.ttl)
	if err != nil {
		return nil, errors.NewInternalError("Could not create a session", err)
	}

	p.logger.WithField("user_id", user.ID).Info("Staff signed in")
	return &domain.AuthSession{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

// SignUp stores a new staff user. A taken email yields an empty identities
// list, the same signal GoTrue gives.
func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*domain.SignUpResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, errors.NewValidationError("Password cannot be used.", map[string]interface{}{"password": err.Error()})
	}

	user, err := p.users.Create(ctx, email, string(hash))
	if err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return &domain.SignUpResult{Identities: []domain.Identity{}}, nil
		}
		p.logger.WithError(err).Error("Failed to create staff user")
		return nil, errors.NewTransientError("Could not create the user. Please try again.", err)
	}

	return &domain.SignUpResult{
		User:       user,
		Identities: []domain.Identity{{ID: user.ID, Provider: "email"}},
	}, nil
}

// SignOut revokes the access token
func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	if err := p.tokens.Revoke(ctx, accessToken); err != nil {
		p.logger.WithError(err).Warn("Failed to revoke token")
		return errors.NewTransientError("Could not sign out. Please try again.", err)
	}
	return nil
}

// ValidateToken verifies the token and that its user still exists
func (p *LocalProvider) ValidateToken(ctx context.Context, accessToken string) (*domain.AuthClaims, error) {
	claims, err := p.tokens.Validate(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	user, err := p.users.GetByID(ctx, claims.Sub)
	if err != nil {
		return nil, errors.NewTransientError("Could not verify the session.", err)
	}
	if user == nil {
		return nil, errors.NewAuthenticationError("User no longer exists")
	}
	return claims, nil
}
