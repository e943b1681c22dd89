package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"audioguide/internal/domain"
	"audioguide/internal/middleware"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func authRouter(auth *mockAuthService) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(auth, logger.Nop(), true)
	h.RegisterRoutes(r)
	r.Route("/api", h.RegisterAPIRoutes)
	return r
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.AccessTokenCookie {
			return c
		}
	}
	return nil
}

func TestAuthHandler_LoginJSON(t *testing.T) {
	session := &domain.AuthSession{
		AccessToken: staffToken,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        &domain.StaffUser{ID: "staff-1", Email: "staff@museum.vn"},
	}

	t.Run("sets the session cookie", func(t *testing.T) {
		auth := &mockAuthService{}
		auth.On("SignIn", mock.Anything, "staff@museum.vn", "secret123").Return(session, nil)

		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":" staff@museum.vn ","password":"secret123"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := serve(authRouter(auth), req)

		require.Equal(t, http.StatusOK, rec.Code)
		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		assert.Equal(t, staffToken, cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.True(t, cookie.Secure)

		var got domain.AuthSession
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
		assert.Equal(t, "staff-1", got.User.ID)
		auth.AssertExpectations(t)
	})

	t.Run("bad credentials", func(t *testing.T) {
		auth := &mockAuthService{}
		auth.On("SignIn", mock.Anything, "staff@museum.vn", "wrong").
			Return(nil, errors.NewAuthenticationError("Invalid login credentials"))

		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"staff@museum.vn","password":"wrong"}`))
		rec := serve(authRouter(auth), req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, sessionCookie(rec))
		assert.Equal(t, "Invalid login credentials", decodeEnvelope(t, rec).Error.Message)
	})

	t.Run("missing fields never reach the provider", func(t *testing.T) {
		auth := &mockAuthService{}

		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"staff@museum.vn"}`))
		rec := serve(authRouter(auth), req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		auth.AssertNotCalled(t, "SignIn", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_LoginForm(t *testing.T) {
	session := &domain.AuthSession{
		AccessToken: staffToken,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        &domain.StaffUser{ID: "staff-1"},
	}

	tests := []struct {
		name         string
		form         url.Values
		signInErr    error
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:         "redirects to next",
			form:         url.Values{"email": {"staff@museum.vn"}, "password": {"secret123"}, "next": {"/admin/visitors"}},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/admin/visitors",
		},
		{
			name:         "rejects off-site next",
			form:         url.Values{"email": {"staff@museum.vn"}, "password": {"secret123"}, "next": {"//evil.example"}},
			wantStatus:   http.StatusSeeOther,
			wantLocation: DefaultAfterLogin,
		},
		{
			name:       "re-renders with the error",
			form:       url.Values{"email": {"staff@museum.vn"}, "password": {"nope"}},
			signInErr:  errors.NewAuthenticationError("Invalid login credentials"),
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid login credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &mockAuthService{}
			if tt.signInErr != nil {
				auth.On("SignIn", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.signInErr)
			} else {
				auth.On("SignIn", mock.Anything, mock.Anything, mock.Anything).Return(session, nil)
			}

			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := serve(authRouter(auth), req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
				assert.NotNil(t, sessionCookie(rec))
			}
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
				assert.Contains(t, rec.Body.String(), `value="staff@museum.vn"`)
			}
		})
	}
}

func TestAuthHandler_LoginPage(t *testing.T) {
	rec := serve(authRouter(&mockAuthService{}), httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `<form method="post" action="/login">`)
}

func TestAuthHandler_Logout(t *testing.T) {
	auth := &mockAuthService{}
	auth.On("SignOut", mock.Anything, staffToken).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: staffToken})
	rec := serve(authRouter(auth), req)

	assert.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
	auth.AssertExpectations(t)
}

func TestAuthHandler_Me(t *testing.T) {
	router := authRouter(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	rec := serve(router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var me MeResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &me))
	assert.Equal(t, "staff-1", me.ID)
	assert.Equal(t, "staff@museum.vn", me.Email)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
