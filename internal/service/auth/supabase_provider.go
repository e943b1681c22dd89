package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"audioguide/internal/domain"
	"audioguide/internal/service"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
)

// SupabaseProvider authenticates staff through Supabase GoTrue
type SupabaseProvider struct {
	client *service.SupabaseClient
	tokens *TokenValidator
	logger *logger.Logger
	now    func() time.Time
}

// NewSupabaseProvider creates the GoTrue-backed identity provider
func NewSupabaseProvider(client *service.SupabaseClient, tokens *TokenValidator, logger *logger.Logger) service.AuthService {
	return &SupabaseProvider{
		client: client,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

type goTrueUser struct {
	ID         string            `json:"id"`
	Email      string            `json:"email"`
	CreatedAt  time.Time         `json:"created_at"`
	Identities []domain.Identity `json:"identities"`
}

func (u *goTrueUser) staffUser() *domain.StaffUser {
	if u == nil || u.ID == "" {
		return nil
	}
	return &domain.StaffUser{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

type goTrueSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         *goTrueUser `json:"user"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn uses the password grant
func (p *SupabaseProvider) SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	var session goTrueSession
	err := p.client.DoJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "",
		credentials{Email: strings.TrimSpace(email), Password: password}, &session)
	if err != nil {
		return nil, p.mapError(err, "Sign-in failed")
	}
	if session.AccessToken == "" {
		return nil, errors.NewExternalError("Sign-in returned no session", nil)
	}

	expiresAt := p.now().Add(time.Duration(session.ExpiresIn) * time.Second)
	if session.ExpiresAt > 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0)
	}

	return &domain.AuthSession{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         session.User.staffUser(),
	}, nil
}

// SignUp creates a GoTrue user. GoTrue answers a taken email with a user
// whose identities list is empty.
func (p *SupabaseProvider) SignUp(ctx context.Context, email, password string) (*domain.SignUpResult, error) {
	// The response is a bare user, or a session wrapping one when
	// autoconfirm is on
	var resp struct {
		goTrueUser
		User *goTrueUser `json:"user"`
	}
	err := p.client.DoJSON(ctx, http.MethodPost, "/auth/v1/signup", "",
		credentials{Email: strings.TrimSpace(email), Password: password}, &resp)
	if err != nil {
		var supaErr *service.SupabaseError
		if stderrors.As(err, &supaErr) && strings.Contains(strings.ToLower(supaErr.Message), "already registered") {
			return &domain.SignUpResult{Identities: []domain.Identity{}}, nil
		}
		return nil, p.mapError(err, "Sign-up failed")
	}

	user := &resp.goTrueUser
	if resp.User != nil {
		user = resp.User
	}
	return &domain.SignUpResult{
		User:       user.staffUser(),
		Identities: user.Identities,
	}, nil
}

// SignOut ends the GoTrue session and revokes the token locally
func (p *SupabaseProvider) SignOut(ctx context.Context, accessToken string) error {
	if err := p.client.DoJSON(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil); err != nil {
		var supaErr *service.SupabaseError
		// An already-invalid session is signed out as far as we care
		if !stderrors.As(err, &supaErr) || supaErr.StatusCode >= 500 {
			return p.mapError(err, "Sign-out failed")
		}
		p.logger.WithField("status_code", supaErr.StatusCode).Debug("GoTrue logout rejected token")
	}

	if err := p.tokens.Revoke(ctx, accessToken); err != nil {
		p.logger.WithError(err).Warn("Failed to revoke token")
	}
	return nil
}

// ValidateToken verifies the token locally with the project JWT secret
func (p *SupabaseProvider) ValidateToken(ctx context.Context, accessToken string) (*domain.AuthClaims, error) {
	return p.tokens.Validate(ctx, accessToken)
}

// GetUser fetches the current user from GoTrue
func (p *SupabaseProvider) GetUser(ctx context.Context, accessToken string) (*domain.StaffUser, error) {
	var user goTrueUser
	if err := p.client.DoJSON(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		return nil, p.mapError(err, "Could not load user")
	}
	return user.staffUser(), nil
}

// mapError turns GoTrue client errors into authentication or validation
// errors and everything else into external errors
func (p *SupabaseProvider) mapError(err error, fallback string) error {
	var supaErr *service.SupabaseError
	if !stderrors.As(err, &supaErr) {
		p.logger.WithError(err).Error(fallback)
		return errors.NewExternalError(fallback, err)
	}

	switch {
	case supaErr.StatusCode == http.StatusBadRequest || supaErr.StatusCode == http.StatusUnauthorized:
		return errors.NewAuthenticationError(supaErr.Message)
	case supaErr.StatusCode == http.StatusUnprocessableEntity:
		return errors.NewValidationError(supaErr.Message, nil)
	case supaErr.StatusCode == http.StatusTooManyRequests:
		return errors.NewRateLimitError(supaErr.Message)
	default:
		p.logger.WithError(err).Error(fallback)
		return errors.NewExternalError(supaErr.Message, err)
	}
}
