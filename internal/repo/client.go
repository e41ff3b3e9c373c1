// Package repo is the sole channel to the remote content repository. It
// resolves relative paths against the configured base endpoint, attaches
// bearer credentials, and maps failures onto a small typed error set.
package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tagsmith/internal/credstore"
	"tagsmith/internal/logging"
)

const (
	loginPath  = "@login"
	searchPath = "@search"

	// searchPageSize is the server-side result cap per search call; no
	// client-side pagination is performed beyond it.
	searchPageSize = "1000"
)

// HTTPDoer abstracts the HTTP transport for tests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP transport.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) { c.http = doer }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.WithComponent(logger, "repo") }
}

// WithTimeout overrides the default transport timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: timeout} }
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client issues authenticated requests against the remote repository.
type Client struct {
	creds  *credstore.Store
	http   HTTPDoer
	logger *slog.Logger
	now    func() time.Time
}

// NewClient builds a Client over the given credential store.
func NewClient(creds *credstore.Store, opts ...Option) *Client {
	client := &Client{
		creds:  creds,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Base returns the currently configured base endpoint.
func (c *Client) Base() string {
	return c.creds.Base()
}

// ResolveURL resolves a path against the base endpoint. Absolute http(s)
// inputs bypass the base; otherwise trimmed base and trimmed path are joined
// with exactly one separator.
func ResolveURL(pathOrURL, base string) string {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return pathOrURL
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(pathOrURL, "/")
}

// Get fetches the resolved target and decodes its JSON body. Any JSON value
// passes through, objects and arrays alike; a non-JSON body fails with
// ErrInvalidBody.
func (c *Client) Get(ctx context.Context, pathOrURL string, headers map[string]string, params url.Values, skipAuth bool) (string, any, error) {
	return c.do(ctx, http.MethodGet, pathOrURL, nil, headers, params, skipAuth, true)
}

// Post sends a JSON payload. A non-object or non-JSON response body is
// tolerated: write acknowledgement is best-effort and an empty object is
// substituted.
func (c *Client) Post(ctx context.Context, pathOrURL string, payload any, headers map[string]string, skipAuth bool) (string, map[string]any, error) {
	return asObject(c.do(ctx, http.MethodPost, pathOrURL, payload, headers, nil, skipAuth, false))
}

// Patch issues a partial update; response body handling matches Post.
func (c *Client) Patch(ctx context.Context, pathOrURL string, payload any, headers map[string]string, skipAuth bool) (string, map[string]any, error) {
	return asObject(c.do(ctx, http.MethodPatch, pathOrURL, payload, headers, nil, skipAuth, false))
}

func asObject(target string, data any, err error) (string, map[string]any, error) {
	obj, ok := data.(map[string]any)
	if !ok {
		obj = map[string]any{}
	}
	return target, obj, err
}

func (c *Client) do(ctx context.Context, method, pathOrURL string, payload any, headers map[string]string, params url.Values, skipAuth, strictBody bool) (string, any, error) {
	target := ResolveURL(pathOrURL, c.creds.Base())

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return target, nil, &RequestError{URL: target, Err: err}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return target, nil, &RequestError{URL: target, Err: err}
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !skipAuth {
		if token, ok := c.bearerToken(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return target, nil, &RequestError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return target, nil, &StatusError{Status: resp.StatusCode, URL: target}
	}

	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		if strictBody {
			return target, nil, ErrInvalidBody
		}
		data = nil
	}
	return target, data, nil
}

// Login authenticates against the repository and replaces the entire session
// on success. A failure leaves any prior session untouched.
func (c *Client) Login(ctx context.Context, base, username, password string) error {
	if strings.TrimSpace(base) == "" {
		base = c.creds.Base()
	}
	loginURL := ResolveURL(loginPath, base)

	payload, err := json.Marshal(map[string]string{"login": username, "password": password})
	if err != nil {
		return &RequestError{URL: loginURL, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewReader(payload))
	if err != nil {
		return &RequestError{URL: loginURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{URL: loginURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, URL: loginURL}
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ErrInvalidBody
	}
	if result.Token == "" {
		return &RequestError{URL: loginURL, Err: errLoginNoToken}
	}

	session := credstore.Session{
		Mode:      credstore.SessionModeToken,
		Token:     result.Token,
		UpdatedAt: c.now().Unix(),
		Username:  username,
	}
	if exp, ok := DecodeExpiry(result.Token); ok {
		session.Expiry = &exp
	}
	if err := c.creds.SetSession(base, session); err != nil {
		return err
	}
	c.logger.Info("logged in", logging.String("base", base), logging.String("username", username))
	return nil
}

var errLoginNoToken = &loginNoTokenError{}

type loginNoTokenError struct{}

func (*loginNoTokenError) Error() string { return "login response did not include a token" }

// SearchByType queries the search endpoint filtered by portal type.
func (c *Client) SearchByType(ctx context.Context, portalType, path string, skipAuth bool) ([]Item, error) {
	params := url.Values{}
	params.Set("portal_type", portalType)
	return c.search(ctx, params, path, skipAuth)
}

// SearchBySubject queries the search endpoint for items carrying a tag.
func (c *Client) SearchBySubject(ctx context.Context, subject, path string, skipAuth bool) ([]Item, error) {
	params := url.Values{}
	params.Set("Subject", subject)
	return c.search(ctx, params, path, skipAuth)
}

// SearchAllMetadata queries the search endpoint requesting every metadata
// field, so the subject field comes back with each item.
func (c *Client) SearchAllMetadata(ctx context.Context, path string, skipAuth bool) ([]Item, error) {
	params := url.Values{}
	params.Set("metadata_fields", "_all")
	return c.search(ctx, params, path, skipAuth)
}

func (c *Client) search(ctx context.Context, params url.Values, path string, skipAuth bool) ([]Item, error) {
	params.Set("b_size", searchPageSize)
	if path != "" {
		params.Set("path", path)
	}

	target := ResolveURL(searchPath, c.creds.Base())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &RequestError{URL: target, Err: err}
	}
	req.URL.RawQuery = params.Encode()
	if !skipAuth {
		if token, ok := c.bearerToken(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{URL: target, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Status: resp.StatusCode, URL: target}
	}

	var result struct {
		Items []Item `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, ErrInvalidBody
	}
	return result.Items, nil
}

// UpdateSubjects replaces an item's tag sequence via partial update.
func (c *Client) UpdateSubjects(ctx context.Context, itemPath string, subjects []string, skipAuth bool) error {
	if subjects == nil {
		subjects = []string{}
	}
	_, _, err := c.Patch(ctx, itemPath, map[string]any{"Subject": subjects}, nil, skipAuth)
	return err
}
