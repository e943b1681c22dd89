package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"audioguide/internal/config"
	"audioguide/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupabaseClient(t *testing.T, handler http.HandlerFunc) *SupabaseClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		SupabaseURL:        server.URL + "/",
		SupabaseAnonKey:    "anon-key",
		SupabaseServiceKey: "service-key",
		StorageBucket:      "audio-files",
	}
	return NewSupabaseClient(cfg, logger.Nop())
}

func TestSupabaseClient_DoJSON(t *testing.T) {
	tests := []struct {
		name          string
		bearer        string
		status        int
		response      string
		wantAuth      string
		expectedError string
		expectedValue string
	}{
		{
			name:          "anon key used when no bearer",
			status:        http.StatusOK,
			response:      `{"value":"ok"}`,
			wantAuth:      "Bearer anon-key",
			expectedValue: "ok",
		},
		{
			name:          "user token forwarded",
			bearer:        "user-token",
			status:        http.StatusOK,
			response:      `{"value":"me"}`,
			wantAuth:      "Bearer user-token",
			expectedValue: "me",
		},
		{
			name:          "gotrue error description",
			status:        http.StatusBadRequest,
			response:      `{"error":"invalid_grant","error_description":"Invalid login credentials"}`,
			wantAuth:      "Bearer anon-key",
			expectedError: "Invalid login credentials",
		},
		{
			name:          "msg field",
			status:        http.StatusUnprocessableEntity,
			response:      `{"code":422,"msg":"Password should be at least 6 characters"}`,
			wantAuth:      "Bearer anon-key",
			expectedError: "Password should be at least 6 characters",
		},
		{
			name:          "plain text error",
			status:        http.StatusInternalServerError,
			response:      `upstream down`,
			wantAuth:      "Bearer anon-key",
			expectedError: "upstream down",
		},
		{
			name:          "invalid json",
			status:        http.StatusOK,
			response:      `not json`,
			wantAuth:      "Bearer anon-key",
			expectedError: "failed to parse Supabase response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestSupabaseClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/auth/v1/user", r.URL.Path)
				assert.Equal(t, tt.wantAuth, r.Header.Get("Authorization"))
				assert.Equal(t, "anon-key", r.Header.Get("apikey"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			})

			var out struct {
				Value string `json:"value"`
			}
			err := client.DoJSON(context.Background(), http.MethodGet, "/auth/v1/user", tt.bearer, nil, &out)

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedValue, out.Value)
		})
	}
}

func TestSupabaseClient_DoJSON_StatusInError(t *testing.T) {
	client := newTestSupabaseClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid JWT"}`))
	})

	err := client.DoJSON(context.Background(), http.MethodGet, "/auth/v1/user", "bad", nil, nil)

	var supaErr *SupabaseError
	require.ErrorAs(t, err, &supaErr)
	assert.Equal(t, http.StatusUnauthorized, supaErr.StatusCode)
	assert.Equal(t, "invalid JWT", supaErr.Message)
}

func TestSupabaseClient_Upload(t *testing.T) {
	var gotPath, gotType, gotAuth, gotBody string
	client := newTestSupabaseClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Key":"audio-files/audio/x.mp3"}`))
	})

	err := client.Upload(context.Background(), "audio/abc_my file.mp3", "audio/mpeg", strings.NewReader("ID3"))
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/audio-files/audio/abc_my%20file.mp3", gotPath)
	assert.Equal(t, "audio/mpeg", gotType)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "ID3", gotBody)
}

func TestSupabaseClient_PublicURL(t *testing.T) {
	client := NewSupabaseClient(&config.Config{
		SupabaseURL:   "https://project.supabase.co",
		StorageBucket: "audio-files",
	}, logger.Nop())

	assert.Equal(t,
		"https://project.supabase.co/storage/v1/object/public/audio-files/audio/abc_guide.mp3",
		client.PublicURL("audio/abc_guide.mp3"))
}
