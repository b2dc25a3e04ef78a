// Package remote is the HTTP client for the authoritative league
// service. Exact routes are this collaborator's contract; everything the
// core needs from it is a handful of per-entity reads and per-mutation
// writes keyed by league handle.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Aidan3445/castaway/internal/fault"
)

// TokenSource supplies the bearer token for each request, usually backed
// by the session provider.
type TokenSource func(ctx context.Context) (string, error)

// Client wraps the remote service's HTTP surface.
type Client struct {
	baseURL string
	client  *http.Client
	token   TokenSource
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, token TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		token: token,
	}
}

// apiError is the service's error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// mapStatus folds an HTTP response into the error taxonomy.
func mapStatus(status int, body []byte) error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)

	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", fault.ErrAuthRequired, ae.Message)
	case status == http.StatusConflict:
		if ae.Code == "TURN_VIOLATION" {
			return fmt.Errorf("%w: %s", fault.ErrTurnViolation, ae.Message)
		}
		return fmt.Errorf("%w: %s", fault.ErrStaleWrite, ae.Message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", fault.ErrValidation, ae.Message)
	case status == http.StatusForbidden || status == http.StatusNotFound || status == http.StatusGone:
		return fmt.Errorf("%w: %s (status %d)", fault.ErrFatal, ae.Message, status)
	case status >= 500:
		return fmt.Errorf("%w: server returned %d", fault.ErrNetwork, status)
	default:
		return fmt.Errorf("unexpected status %d: %s", status, ae.Message)
	}
}

// request performs one round trip. Transport failures surface as
// ErrNetwork so the poller treats them as transient.
func (c *Client) request(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", fault.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapStatus(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// GetRaw reads an endpoint and returns the raw JSON payload, which the
// cache stores verbatim.
func (c *Client) GetRaw(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, endpoint, nil)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	body, err := c.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	respBody, err := c.request(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
		}
	}
	return nil
}

func (c *Client) put(ctx context.Context, endpoint string, body any) error {
	_, err := c.request(ctx, http.MethodPut, endpoint, body)
	return err
}

func (c *Client) delete(ctx context.Context, endpoint string, body any) error {
	_, err := c.request(ctx, http.MethodDelete, endpoint, body)
	return err
}
