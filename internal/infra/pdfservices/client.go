// Package pdfservices is a client for the Adobe PDF Services REST API.
//
// A job runs in four steps: Upload the input, Submit an operation, Wait for
// the polled result, and fetch each result asset with Content.
package pdfservices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"a11y-gateway/internal/config"
)

// Credentials identify the service principal.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client talks to one PDF Services endpoint. It is safe for concurrent use.
type Client struct {
	baseURL      string
	creds        Credentials
	httpClient   *http.Client
	pollInterval time.Duration

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPollInterval sets the delay between job status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// New creates a client for baseURL.
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		creds:        creds,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		pollInterval: 2 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the pdf_services config section.
func NewFromConfig(cfg config.Config) *Client {
	s := cfg.PDFServices
	return New(s.BaseURL,
		Credentials{ClientID: s.ClientID, ClientSecret: s.ClientSecret},
		WithHTTPClient(&http.Client{Timeout: s.HTTPTimeout}),
		WithPollInterval(s.PollInterval),
	)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// accessToken returns a cached bearer token, fetching a new one when the
// cached token is within a minute of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("client_id", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newAPIError("token", resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response has no access_token")
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	}
	c.token = tr.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	return c.token, nil
}

// doJSON sends an authenticated request with an optional JSON body.
func (c *Client) doJSON(ctx context.Context, op, method, endpoint string, body any) (*http.Response, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("X-API-Key", c.creds.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	return resp, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}
