package handler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"audioguide/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkFunc func(ctx context.Context) error

func (f checkFunc) Health(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Check(t *testing.T) {
	ok := checkFunc(func(ctx context.Context) error { return nil })
	down := checkFunc(func(ctx context.Context) error { return stderrors.New("connection refused") })

	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantStatus int
		wantState  string
		wantDeps   map[string]string
	}{
		{
			name:       "all healthy",
			checks:     map[string]HealthChecker{"database": ok, "redis": ok},
			wantStatus: http.StatusOK,
			wantState:  "healthy",
			wantDeps:   map[string]string{"database": "healthy", "redis": "healthy"},
		},
		{
			name:       "redis down",
			checks:     map[string]HealthChecker{"database": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "degraded",
			wantDeps:   map[string]string{"database": "healthy", "redis": "unhealthy"},
		},
		{
			name:       "nil checkers are skipped",
			checks:     map[string]HealthChecker{"database": ok, "redis": nil},
			wantStatus: http.StatusOK,
			wantState:  "healthy",
			wantDeps:   map[string]string{"database": "healthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHealthHandler(tt.checks, logger.Nop()).RegisterRoutes(r)

			rec := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantState, resp.Status)
			assert.Equal(t, "audioguide", resp.Service)
			assert.Equal(t, tt.wantDeps, resp.Dependencies)
		})
	}
}
