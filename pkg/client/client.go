// Package client provides the MES request gateway: the single choke
// point through which all backend calls pass. It normalizes headers,
// serializes bodies, and converts transport failures into typed errors.
//
// The gateway deliberately does not cache, retry, or log. Caching lives
// in pkg/edgecache beneath it, retry policy belongs to pkg/querycache
// (reads) and pkg/mutate (writes).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fabwerk/mes-edge-client/pkg/edgecache"
)

// Config holds the gateway configuration.
type Config struct {
	// BaseURL is the backend base URL. All endpoints are relative to it.
	BaseURL string

	// HTTPClient is the underlying HTTP client. Leave nil for a default
	// client; set one wrapping an edgecache.Transport to enable the
	// transport-level cache layers.
	HTTPClient *http.Client

	// UserAgent is sent with every request.
	UserAgent string
}

// Client is the request gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// New creates a new gateway.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
	}, nil
}

// Send performs a request against an endpoint relative to the base URL.
// On a 2xx response the parsed JSON body is returned (nil for an empty
// body). Any other outcome yields a typed *Error.
func (c *Client) Send(ctx context.Context, method, endpoint string, body any, header http.Header) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, edgecache.ErrNoFallback) {
			return nil, &Error{Kind: KindTimeout, Endpoint: endpoint, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:       KindHTTP,
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Endpoint:   endpoint,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, &Error{Kind: KindDecode, Endpoint: endpoint, Err: fmt.Errorf("invalid JSON body")}
	}

	return json.RawMessage(data), nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.Send(ctx, http.MethodGet, endpoint, nil, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any, header http.Header) (json.RawMessage, error) {
	return c.Send(ctx, http.MethodPost, endpoint, body, header)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, body any, header http.Header) (json.RawMessage, error) {
	return c.Send(ctx, http.MethodPatch, endpoint, body, header)
}
