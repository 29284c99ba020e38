package qbittorrent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const apiPrefix = "/api/v2"

// Client talks to the qBittorrent Web API directly. It keeps one session per
// instance and logs in lazily on first use.
type Client struct {
	baseURL    string
	username   string
	password   string
	userAgent  string
	httpClient *http.Client
	logger     zerolog.Logger

	authenticated atomic.Bool
	loginGroup    singleflight.Group
}

// NewClient creates a new qBittorrent Web API client. No request is made
// until the first operation.
func NewClient(baseURL, username, password string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("qbittorrent URL is required")
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid qbittorrent URL %q: must be absolute, e.g. http://localhost:8080", baseURL)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	httpClient, err := newHTTPClient(o)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		userAgent:  o.userAgent,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func newHTTPClient(o clientOptions) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if o.httpClient != nil {
		if o.httpClient.Jar != nil {
			return o.httpClient, nil
		}
		hc := *o.httpClient
		hc.Jar = jar
		return &hc, nil
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = o.timeout
	hc.Jar = jar
	return hc, nil
}

// Authenticated reports whether the client currently holds a session.
func (c *Client) Authenticated() bool {
	return c.authenticated.Load()
}

// Login authenticates against the Web API with the given credentials.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	body, err := c.doRequest(ctx, http.MethodPost, "/auth/login", nil,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		c.authenticated.Store(false)
		return opError("login", ErrAuthenticationFailed, err)
	}

	// qBittorrent answers 200 with "Fails." for wrong credentials
	if strings.TrimSpace(string(body)) == "Fails." {
		c.authenticated.Store(false)
		return opError("login", ErrAuthenticationFailed, fmt.Errorf("bad credentials for user %q", username))
	}

	c.authenticated.Store(true)
	c.logger.Debug().Str("user", username).Msg("Authenticated with qBittorrent")
	return nil
}

// ensureSession logs in with the configured credentials when no session
// exists. Concurrent callers share a single in-flight login.
func (c *Client) ensureSession(ctx context.Context) error {
	if c.authenticated.Load() {
		return nil
	}

	// the login is shared, so one caller's cancellation must not fail the others
	loginCtx := context.WithoutCancel(ctx)
	_, err, shared := c.loginGroup.Do("login", func() (any, error) {
		if c.authenticated.Load() {
			return nil, nil
		}
		return nil, c.Login(loginCtx, c.username, c.password)
	})
	if shared {
		c.logger.Debug().Msg("Joined in-flight qBittorrent login")
	}
	return err
}

// call performs an authenticated request and translates failures into an
// OperationError for op.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.doRequest(ctx, method, path, query, body, contentType)
	if err != nil {
		return nil, opError(op, ErrTransportFailed, err)
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	return c.call(ctx, op, http.MethodGet, path, query, nil, "")
}

func (c *Client) postForm(ctx context.Context, op, path string, form url.Values) ([]byte, error) {
	return c.call(ctx, op, http.MethodPost, path, nil,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

// doRequest performs a single HTTP request against the Web API
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, error) {
	endpoint := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// qBittorrent rejects cross-site requests unless Referer matches the host
	req.Header.Set("Referer", c.baseURL)
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("qBittorrent API request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusForbidden {
			// session expired or was never valid; the next call logs in again
			c.authenticated.Store(false)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return data, nil
}
