package backend

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

	"listing_hunter/config"
)

const (
	RunPath    = "/api/run"
	StatusPath = "/api/run/status"

	secretHeader = "X-Run-Secret"

	unauthorizedHint = " - set HUNTER_RUN_SECRET to the same value as APIFY_WEBHOOK_SECRET on the backend and redeploy."
)

var (
	ErrNotConfigured   = errors.New("BACKEND_URL not configured")
	ErrTimeout         = errors.New("Backend did not respond")
	ErrUnreachable     = errors.New("Backend request failed")
	ErrInvalidResponse = errors.New("Backend returned invalid JSON")
)

// ProxiedResponse is the backend's answer, possibly rewritten for 401/500.
type ProxiedResponse struct {
	StatusCode int
	Body       map[string]any
}

// Client forwards run requests to the scraper backend.
type Client struct {
	baseURL string
	secret  string
	timeout time.Duration
	http    *http.Client
}

func NewClient(cfg *config.BackendConfig, client *http.Client) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultBackendTimeout
	}
	return &Client{
		baseURL: NormalizeBaseURL(cfg.URL),
		secret:  strings.TrimSpace(cfg.RunSecret),
		timeout: timeout,
		http:    client,
	}
}

// NormalizeBaseURL trims a trailing slash and defaults the scheme to https.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "/"))
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base
}

func (c *Client) Configured() bool {
	return c.baseURL != ""
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Trigger asks the backend to start a run. body is forwarded as-is; nil
// sends an empty object.
func (c *Client) Trigger(ctx context.Context, body map[string]any) (*ProxiedResponse, error) {
	if body == nil {
		body = map[string]any{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, RunPath, payload)
}

// Status is a live passthrough of the backend run status.
func (c *Client) Status(ctx context.Context) (*ProxiedResponse, error) {
	return c.do(ctx, http.MethodGet, StatusPath, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (*ProxiedResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set(secretHeader, c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(ctx, err)
	}

	body := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, ErrInvalidResponse
		}
	}
	// A JSON null decodes into a nil map.
	if body == nil {
		body = map[string]any{}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		msg, _ := body["error"].(string)
		if msg == "" {
			msg = "Unauthorized"
		}
		body["error"] = msg + unauthorizedHint
	case http.StatusInternalServerError:
		if msg, _ := body["error"].(string); msg == "" {
			body["error"] = "Backend internal error"
		}
	}

	return &ProxiedResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w within %s", ErrTimeout, c.timeout)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
