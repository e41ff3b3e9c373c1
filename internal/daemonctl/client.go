// Package daemonctl is the CLI-side client for the daemon's localhost API,
// plus the orchestration for launching and stopping the daemon process.
package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tagsmith/internal/api"
	"tagsmith/internal/history"
	"tagsmith/internal/tags"
)

// Client talks to a running tagsmith daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the daemon bound at bind (host:port).
func NewClient(bind string) *Client {
	return &Client{
		baseURL: "http://" + strings.TrimSpace(bind),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// APIError is a non-2xx daemon response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("daemon returned status %d", e.Status)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Health checks daemon liveness.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var health api.HealthResponse
	err := c.get(ctx, "/api/health", nil, &health)
	return health, err
}

// Session returns the endpoint and authentication state.
func (c *Client) Session(ctx context.Context) (api.SessionInfo, error) {
	var session api.SessionInfo
	err := c.get(ctx, "/api/session", nil, &session)
	return session, err
}

// Login establishes a session against the remote repository.
func (c *Client) Login(ctx context.Context, base, username, password string) (api.SessionInfo, error) {
	var session api.SessionInfo
	err := c.post(ctx, "/api/login", api.LoginRequest{Base: base, Username: username, Password: password}, &session)
	return session, err
}

// Logout drops the stored session.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/api/logout", nil, nil)
}

// SetEndpoint switches the remote base endpoint, dropping any session.
func (c *Client) SetEndpoint(ctx context.Context, base string) (api.SessionInfo, error) {
	var session api.SessionInfo
	err := c.post(ctx, "/api/endpoint", api.EndpointRequest{Base: base}, &session)
	return session, err
}

// Get fetches an arbitrary repository path through the daemon.
func (c *Client) Get(ctx context.Context, path string, skipAuth bool) (api.GetResponse, error) {
	query := url.Values{}
	query.Set("path", path)
	if skipAuth {
		query.Set("no_auth", "1")
	}
	var out api.GetResponse
	err := c.get(ctx, "/api/get", query, &out)
	return out, err
}

// Items lists content items by portal type.
func (c *Client) Items(ctx context.Context, portalType, path string, skipAuth bool) ([]api.ItemView, error) {
	query := url.Values{}
	if portalType != "" {
		query.Set("type", portalType)
	}
	if path != "" {
		query.Set("path", path)
	}
	if skipAuth {
		query.Set("no_auth", "1")
	}
	var out api.ItemListResponse
	err := c.get(ctx, "/api/items", query, &out)
	return out.Items, err
}

// TagCounts returns tag frequencies for a subtree.
func (c *Client) TagCounts(ctx context.Context, path string, skipAuth bool) (api.TagCountsResponse, error) {
	query := url.Values{}
	if path != "" {
		query.Set("path", path)
	}
	if skipAuth {
		query.Set("no_auth", "1")
	}
	var out api.TagCountsResponse
	err := c.get(ctx, "/api/tags", query, &out)
	return out, err
}

// Similar runs a similarity scan. An empty tag compares all pairs.
func (c *Client) Similar(ctx context.Context, tag string, threshold int, path string, skipAuth bool) (api.SimilarResponse, error) {
	query := url.Values{}
	if tag != "" {
		query.Set("tag", tag)
	}
	if threshold > 0 {
		query.Set("threshold", strconv.Itoa(threshold))
	}
	if path != "" {
		query.Set("path", path)
	}
	if skipAuth {
		query.Set("no_auth", "1")
	}
	var out api.SimilarResponse
	err := c.get(ctx, "/api/similar-tags", query, &out)
	return out, err
}

// Progress polls a similarity scan. An empty id returns the latest scan.
func (c *Client) Progress(ctx context.Context, scanID string) (tags.State, error) {
	query := url.Values{}
	if scanID != "" {
		query.Set("scan_id", scanID)
	}
	var state tags.State
	err := c.get(ctx, "/api/similar-tags/progress", query, &state)
	return state, err
}

// Merge folds source tags into target.
func (c *Client) Merge(ctx context.Context, req api.MergeRequest) (tags.Result, error) {
	var result tags.Result
	err := c.post(ctx, "/api/tags/merge", req, &result)
	return result, err
}

// Rename rewrites one tag.
func (c *Client) Rename(ctx context.Context, req api.RenameRequest) (tags.Result, error) {
	var result tags.Result
	err := c.post(ctx, "/api/tags/rename", req, &result)
	return result, err
}

// Remove strips one tag.
func (c *Client) Remove(ctx context.Context, req api.RemoveRequest) (tags.Result, error) {
	var result tags.Result
	err := c.post(ctx, "/api/tags/remove", req, &result)
	return result, err
}

// History returns recorded audit events, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]history.Event, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out api.HistoryResponse
	if err := c.get(ctx, "/api/history", query, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.post(ctx, "/api/shutdown", nil, nil)
}
