package handler

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"audioguide/internal/domain"
	"audioguide/internal/middleware"
	"audioguide/internal/service"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// DefaultAfterLogin is where a browser lands after a form sign-in
const DefaultAfterLogin = "/admin/artifacts"

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Staff sign in</title></head>
<body>
<h1>Staff sign in</h1>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<form method="post" action="/login">
<input type="hidden" name="next" value="{{.Next}}">
<label>Email <input type="email" name="email" value="{{.Email}}" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

type loginView struct {
	Email string
	Error string
	Next  string
}

// AuthHandler handles staff sign-in and sign-out
type AuthHandler struct {
	auth          service.AuthService
	logger        *logger.Logger
	secureCookies bool
}

// NewAuthHandler creates a new auth handler. secureCookies should be true
// whenever the server is reached over HTTPS.
func NewAuthHandler(auth service.AuthService, logger *logger.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		auth:          auth,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// MeResponse is the identity behind the current token
type MeResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// RegisterRoutes registers the login page and session endpoints
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Get(middleware.LoginPath, h.LoginPage)
	r.Post(middleware.LoginPath, h.Login)
	r.Post("/logout", h.Logout)
}

// RegisterAPIRoutes registers /auth/me under the API router
func (h *AuthHandler) RegisterAPIRoutes(r chi.Router) {
	r.With(middleware.AdminAuth(h.auth, h.logger)).Get("/auth/me", h.Me)
}

// LoginPage handles GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, http.StatusOK, loginView{Next: safeNext(r.URL.Query().Get("next"))})
}

// Login handles POST /login with either a JSON body or a form post
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if isFormPost(r) {
		h.loginForm(w, r)
		return
	}

	var creds domain.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session, err := h.signIn(r, creds)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.setSessionCookie(w, session)
	writeJSON(w, h.logger, http.StatusOK, session)
}

func (h *AuthHandler) loginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, http.StatusBadRequest, loginView{Error: "Invalid form submission."})
		return
	}

	creds := domain.Credentials{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	next := safeNext(r.PostFormValue("next"))

	session, err := h.signIn(r, creds)
	if err != nil {
		appErr := errors.From(err)
		h.renderLogin(w, appErr.StatusCode, loginView{Email: creds.Email, Error: appErr.Message, Next: next})
		return
	}

	h.setSessionCookie(w, session)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *AuthHandler) signIn(r *http.Request, creds domain.Credentials) (*domain.AuthSession, error) {
	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, errors.NewValidationError("Email and password are required.", nil)
	}

	session, err := h.auth.SignIn(r.Context(), email, creds.Password)
	if err != nil {
		h.logger.WithError(err).Debug("Staff sign-in failed")
		return nil, err
	}

	h.logger.WithField("user_id", session.User.ID).Info("Staff signed in")
	return session, nil
}

// Logout handles POST /logout. The cookie is always cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.ExtractToken(r); token != "" {
		if err := h.auth.SignOut(r.Context(), token); err != nil {
			h.logger.WithError(err).Warn("Sign-out failed")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if isFormPost(r) {
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, nil)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		writeError(w, r, h.logger, errors.NewAuthenticationError("User not authenticated"))
		return
	}

	writeJSON(w, h.logger, http.StatusOK, MeResponse{
		ID:    claims.Sub,
		Email: claims.Email,
		Role:  claims.Role,
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *domain.AuthSession) {
	cookie := &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    session.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if !session.ExpiresAt.IsZero() {
		cookie.Expires = session.ExpiresAt
		cookie.MaxAge = int(time.Until(session.ExpiresAt).Seconds())
	}
	http.SetCookie(w, cookie)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, status int, view loginView) {
	if view.Next == "" {
		view.Next = DefaultAfterLogin
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginPage.Execute(w, view); err != nil {
		h.logger.WithError(err).Error("Failed to render login page")
	}
}

func isFormPost(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	return strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data")
}

// safeNext only allows local absolute paths as redirect targets
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return DefaultAfterLogin
	}
	return next
}
