package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"audioguide/internal/config"
	"audioguide/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SupabaseError is a non-2xx response from a Supabase endpoint
type SupabaseError struct {
	StatusCode int
	Message    string
}

func (e *SupabaseError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.StatusCode, e.Message)
}

// SupabaseClient handles all interactions with the Supabase REST APIs
type SupabaseClient struct {
	baseURL    string
	anonKey    string
	serviceKey string
	bucket     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewSupabaseClient creates a new Supabase client
func NewSupabaseClient(cfg *config.Config, logger *logger.Logger) *SupabaseClient {
	return &SupabaseClient{
		baseURL:    strings.TrimRight(cfg.SupabaseURL, "/"),
		anonKey:    cfg.SupabaseAnonKey,
		serviceKey: cfg.SupabaseServiceKey,
		bucket:     cfg.StorageBucket,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// DoJSON sends a JSON request to path and decodes a JSON response into out.
// bearer defaults to the anon key when empty. out may be nil.
func (s *SupabaseClient) DoJSON(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if bearer == "" {
		bearer = s.anonKey
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, err := s.do(req)
	if err != nil {
		return err
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"path":          path,
			"response_body": string(respBody),
		}).Error("Failed to parse Supabase response")
		return fmt.Errorf("failed to parse Supabase response: %w", err)
	}
	return nil
}

// Upload writes an object into the storage bucket using the service key
func (s *SupabaseClient) Upload(ctx context.Context, path, contentType string, body io.Reader) error {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, escapePath(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	if _, err := s.do(req); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"bucket": s.bucket,
		"path":   path,
	}).Info("Uploaded object to storage")
	return nil
}

// PublicURL returns the public download URL of an object in the bucket
func (s *SupabaseClient) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, escapePath(path))
}

func (s *SupabaseClient) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Supabase: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"method":      req.Method,
		"path":        req.URL.Path,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Supabase request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SupabaseError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage pulls the human-readable message out of the error shapes
// GoTrue and Storage return
func errorMessage(body []byte) string {
	var payload struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, candidate := range []string{payload.ErrorDescription, payload.Msg, payload.Message, payload.Error} {
			if candidate != "" {
				return candidate
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return "empty response"
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
