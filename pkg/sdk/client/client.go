// Package client is a Go client for the gateway's tenant-facing /v1 API.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/LucasEdu07/friday-agents/pkg/types"
)

// Error is a non-2xx response. RequestID is the gateway's X-Request-Id and
// Tenant is set on rate-limit rejections.
type Error struct {
	Status    int
	Detail    string
	Tenant    string
	RequestID string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %d %s (request %s)", e.Status, e.Detail, e.RequestID)
}

// IsRateLimited reports whether err is a 429 from the gateway.
func IsRateLimited(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusTooManyRequests
}

// Meta carries the correlation headers of a successful call.
type Meta struct {
	RequestID string
	TenantID  string
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Ping(ctx context.Context) (*types.PingResponse, Meta, error) {
	var resp types.PingResponse
	meta, err := c.do(ctx, http.MethodGet, "/v1/ping", nil, &resp)
	if err != nil {
		return nil, meta, err
	}
	return &resp, meta, nil
}

func (c *Client) WhoAmI(ctx context.Context) (*types.WhoAmIResponse, Meta, error) {
	var resp types.WhoAmIResponse
	meta, err := c.do(ctx, http.MethodGet, "/v1/debug/whoami", nil, &resp)
	if err != nil {
		return nil, meta, err
	}
	return &resp, meta, nil
}

func (c *Client) Analyze(ctx context.Context, text string) (*types.AnalyzeResponse, Meta, error) {
	var resp types.AnalyzeResponse
	meta, err := c.do(ctx, http.MethodPost, "/v1/analyze", types.AnalyzeRequest{Text: text}, &resp)
	if err != nil {
		return nil, meta, err
	}
	return &resp, meta, nil
}

func (c *Client) VisionAnalyze(ctx context.Context, imageBase64 string) (*types.VisionAnalyzeResponse, Meta, error) {
	var resp types.VisionAnalyzeResponse
	meta, err := c.do(ctx, http.MethodPost, "/v1/vision/analyze", types.VisionAnalyzeRequest{ImageBase64: imageBase64}, &resp)
	if err != nil {
		return nil, meta, err
	}
	return &resp, meta, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (Meta, error) {
	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return Meta{}, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return Meta{}, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Meta{}, err
	}
	defer resp.Body.Close()

	meta := Meta{RequestID: resp.Header.Get("X-Request-Id"), TenantID: resp.Header.Get("X-Tenant-Id")}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode, RequestID: meta.RequestID}
		var envelope types.APIError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil {
			apiErr.Detail = envelope.Detail
			apiErr.Tenant = envelope.Tenant
		}
		if apiErr.Detail == "" {
			apiErr.Detail = http.StatusText(resp.StatusCode)
		}
		return meta, apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return meta, err
	}
	return meta, nil
}
