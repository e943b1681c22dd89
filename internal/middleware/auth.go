package middleware

import (
	"context"
	"net/http"
	"strings"

	"audioguide/internal/domain"
	"audioguide/internal/service"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// UserContextKey is the key for the staff claims in context
	UserContextKey ContextKey = "user"
)

// Names shared with the login handler
const (
	AccessTokenCookie = "sb-access-token"
	LoginPath         = "/login"
)

// AdminAuth requires a valid staff token from the Authorization header or the
// session cookie. Browsers navigating to a page are sent to the login page;
// API callers get a 401. A valid token without the staff role gets a 403.
func AdminAuth(authService service.AuthService, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, appErr := extractToken(r)
			if appErr != nil {
				deny(w, r, appErr, logger)
				return
			}

			claims, err := authService.ValidateToken(r.Context(), token)
			if err != nil {
				appErr, ok := errors.AsAppError(err)
				if !ok || appErr.Type != errors.ErrorTypeAuthentication {
					// Not the caller's fault; report it as is
					logger.WithError(err).Error("Token validation failed")
					errors.WriteJSON(w, err, GetRequestID(r.Context()))
					return
				}
				deny(w, r, appErr, logger)
				return
			}
			if !claims.IsStaff() {
				logger.WithFields(map[string]interface{}{
					"user_id": claims.Sub,
					"role":    claims.Role,
				}).Warn("Non-staff token used on admin route")
				errors.WriteJSON(w, errors.NewAuthorizationError("Staff access required"), GetRequestID(r.Context()))
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			logger.WithField("user_id", claims.Sub).Debug("Staff authenticated")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims returns the authenticated staff claims, if any
func GetClaims(ctx context.Context) (*domain.AuthClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*domain.AuthClaims)
	return claims, ok && claims != nil
}

// ExtractToken returns the bearer token or session cookie value, or ""
func ExtractToken(r *http.Request) string {
	token, _ := extractToken(r)
	return token
}

func extractToken(r *http.Request) (string, *errors.AppError) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", errors.NewAuthenticationError("Invalid authorization header format")
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return "", errors.NewAuthenticationError("Token is required")
		}
		return token, nil
	}

	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	return "", errors.NewAuthenticationError("Authentication required")
}

func deny(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, logger *logger.Logger) {
	logger.WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"reason": appErr.Message,
	}).Debug("Unauthenticated admin request")

	if wantsHTML(r) {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}
	errors.WriteJSON(w, appErr, GetRequestID(r.Context()))
}

// wantsHTML reports whether the request is a browser page navigation
func wantsHTML(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
