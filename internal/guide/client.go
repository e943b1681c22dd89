package guide

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

	"audioguide/internal/domain"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MsgServerUnreachable is shown when a request never got an answer
const MsgServerUnreachable = "Could not reach the server. Please check your connection and try again."

// Client talks to the audioguide HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, logger *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Type    errors.ErrorType       `json:"type"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

// Register registers a visitor or resumes their grant
func (c *Client) Register(ctx context.Context, fullName, phone string) (*domain.Session, error) {
	var session domain.Session
	body := domain.RegisterRequest{FullName: fullName, PhoneNumber: phone}
	if err := c.do(ctx, http.MethodPost, "/api/visitors/register", "", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// LookupArtifact finds an artifact by its code
func (c *Client) LookupArtifact(ctx context.Context, code string) (*domain.Artifact, error) {
	var artifact domain.Artifact
	if err := c.do(ctx, http.MethodGet, "/api/artifacts/"+url.PathEscape(code), "", nil, &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// RecordListen counts one play of an artifact's narration in lang
func (c *Client) RecordListen(ctx context.Context, artifactID string, lang domain.Language) (int64, error) {
	var resp struct {
		Count int64 `json:"count"`
	}
	body := map[string]domain.Language{"language": lang}
	if err := c.do(ctx, http.MethodPost, "/api/artifacts/"+url.PathEscape(artifactID)+"/listens", "", body, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// RecordVisit counts one guide page visit from this device
func (c *Client) RecordVisit(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/visitors/visit", "", nil, nil)
}

// Stats returns the public visit counters
func (c *Client) Stats(ctx context.Context) (*domain.TrafficStats, error) {
	var stats domain.TrafficStats
	if err := c.do(ctx, http.MethodGet, "/api/visitors/stats", "", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SignIn exchanges staff credentials for a session
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	var session domain.AuthSession
	body := domain.Credentials{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/login", "", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SignOut ends the staff session behind token
func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/logout", token, nil, nil)
}

// Me returns the staff identity behind token
func (c *Client) Me(ctx context.Context, token string) (*domain.StaffUser, error) {
	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &me); err != nil {
		return nil, err
	}
	return &domain.StaffUser{ID: me.ID, Email: me.Email}, nil
}

// VisitorRow is a visitor as listed for staff
type VisitorRow struct {
	domain.Visitor
	AccessState domain.AccessState `json:"access_state"`
}

// ListVisitors returns visitors matching query, newest first
func (c *Client) ListVisitors(ctx context.Context, token, query string) ([]VisitorRow, error) {
	var rows []VisitorRow
	path := "/admin/visitors"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	if err := c.do(ctx, http.MethodGet, path, token, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SetVisitorActive reactivates or deactivates a visitor
func (c *Client) SetVisitorActive(ctx context.Context, token, visitorID string, active bool) (*VisitorRow, error) {
	action := "deactivate"
	if active {
		action = "reactivate"
	}
	var row VisitorRow
	if err := c.do(ctx, http.MethodPost, "/admin/visitors/"+url.PathEscape(visitorID)+"/"+action, token, nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewTransientError(MsgServerUnreachable, err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(map[string]interface{}{
		"method":      method,
		"path":        req.URL.Path,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("API request completed")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewTransientError(MsgServerUnreachable, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return errors.NewTransientError(MsgServerUnreachable, fmt.Errorf("status %d", resp.StatusCode))
		}
		return errors.NewInternalError("Unexpected response from the server.", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		if env.Error == nil {
			appErr := &errors.AppError{
				Type:       errors.ErrorTypeInternal,
				Message:    env.Message,
				StatusCode: resp.StatusCode,
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				appErr.Type = errors.ErrorTypeRateLimit
			}
			if appErr.Message == "" {
				appErr.Message = http.StatusText(resp.StatusCode)
			}
			return appErr
		}
		return &errors.AppError{
			Type:       env.Error.Type,
			Message:    env.Error.Message,
			StatusCode: resp.StatusCode,
			Details:    env.Error.Details,
		}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.NewInternalError("Unexpected response from the server.", err)
	}
	return nil
}
