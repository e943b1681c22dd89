package auth

import (
	"context"
	"crypto/sha256"
	stderrors "errors"
	"fmt"
	"time"

	"audioguide/internal/domain"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
	"audioguide/pkg/redis"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token settings for locally issued sessions
const (
	DefaultTokenTTL = 8 * time.Hour
	TokenIssuer     = "audioguide"
	TokenAudience   = "authenticated"
	StaffRole       = domain.RoleStaff
)

// TokenValidator verifies HS256 access tokens signed with the project JWT secret.
// Supabase GoTrue and the local provider both sign with it. Revocation needs
// Redis; without it SignOut only ends the session client-side.
type TokenValidator struct {
	secret []byte
	redis  *redis.Client
	logger *logger.Logger
	now    func() time.Time
}

// NewTokenValidator creates a validator. redisClient may be nil.
func NewTokenValidator(secret string, redisClient *redis.Client, logger *logger.Logger) *TokenValidator {
	return &TokenValidator{
		secret: []byte(secret),
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

// Issue signs a token for a staff user
func (v *TokenValidator) Issue(user *domain.StaffUser, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := v.now()
	expiresAt := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  StaffRole,
		"aud":   TokenAudience,
		"iss":   TokenIssuer,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
		"jti":   uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies the signature, expiry and revocation state of a token
func (v *TokenValidator) Validate(ctx context.Context, tokenString string) (*domain.AuthClaims, error) {
	if len(v.secret) == 0 {
		v.logger.Error("JWT secret not configured")
		return nil, errors.NewAuthenticationError("JWT validation not configured")
	}
	if tokenString == "" {
		return nil, errors.NewAuthenticationError("Missing access token")
	}

	claims, err := v.parse(tokenString)
	if err != nil {
		v.logger.WithError(err).Debug("Rejected access token")
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.NewAuthenticationError("Token has expired")
		}
		return nil, errors.NewAuthenticationError("Invalid JWT token")
	}

	authClaims := toAuthClaims(claims)
	if authClaims.Sub == "" {
		return nil, errors.NewAuthenticationError("Invalid JWT token: no user identifier")
	}

	revoked, err := v.isRevoked(ctx, tokenID(claims, tokenString))
	if err != nil {
		// Fail open when Redis is unavailable
		v.logger.WithError(err).Warn("Failed to check token revocation")
	} else if revoked {
		return nil, errors.NewAuthenticationError("Session has ended")
	}

	return authClaims, nil
}

// Revoke blocks the token until it would have expired anyway
func (v *TokenValidator) Revoke(ctx context.Context, tokenString string) error {
	if v.redis == nil {
		return nil
	}

	claims, err := v.parse(tokenString)
	if err != nil {
		// Nothing to revoke for an invalid or expired token
		return nil
	}

	ttl := time.Minute
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		if remaining := exp.Sub(v.now()); remaining > 0 {
			ttl = remaining
		}
	}

	key := v.redis.KeyBuilder.KeyRevokedToken(tokenID(claims, tokenString))
	if err := v.redis.Set(ctx, key, "1", ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (v *TokenValidator) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return claims, nil
}

func (v *TokenValidator) isRevoked(ctx context.Context, id string) (bool, error) {
	if v.redis == nil {
		return false, nil
	}
	n, err := v.redis.Exists(ctx, v.redis.KeyBuilder.KeyRevokedToken(id))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// tokenID prefers the jti, then GoTrue's session_id, then a hash of the token
func tokenID(claims jwt.MapClaims, tokenString string) string {
	if id := getStringValue(claims, "jti"); id != "" {
		return id
	}
	if id := getStringValue(claims, "session_id"); id != "" {
		return id
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(tokenString)))
}

func toAuthClaims(claims jwt.MapClaims) *domain.AuthClaims {
	out := &domain.AuthClaims{
		Sub:   getStringValue(claims, "sub"),
		Email: getStringValue(claims, "email"),
		Role:  getStringValue(claims, "role"),
		Iss:   getStringValue(claims, "iss"),
		Iat:   getInt64Value(claims, "iat"),
		Exp:   getInt64Value(claims, "exp"),
	}
	if aud, err := claims.GetAudience(); err == nil && len(aud) > 0 {
		out.Aud = aud[0]
	}
	return out
}

// Helper functions to safely extract values from claims
func getStringValue(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

func getInt64Value(m map[string]interface{}, key string) int64 {
	if val, ok := m[key].(float64); ok {
		return int64(val)
	}
	return 0
}
