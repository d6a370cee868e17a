package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"listing_hunter/config"
)

func newTestClient(t *testing.T, timeout time.Duration, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&config.BackendConfig{URL: server.URL + "/", RunSecret: " s3cret ", Timeout: timeout}, server.Client())
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                           "",
		"hunter.up.railway.app":      "https://hunter.up.railway.app",
		"hunter.up.railway.app/":     "https://hunter.up.railway.app",
		"http://localhost:3001/":     "http://localhost:3001",
		" https://backend.example ": "https://backend.example",
	}
	for in, want := range cases {
		if got := NormalizeBaseURL(in); got != want {
			t.Fatalf("NormalizeBaseURL(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestClient_TriggerForwardsBodyAndSecret(t *testing.T) {
	client := newTestClient(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != RunPath {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Run-Secret"); got != "s3cret" {
			t.Errorf("expected trimmed secret, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"days_back":3}` {
			t.Errorf("unexpected body %s", body)
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"ok":true,"status":"running"}`))
	})

	resp, err := client.Trigger(context.Background(), map[string]any{"days_back": 3})
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted || resp.Body["status"] != "running" {
		t.Fatalf("expected 202 passthrough, got %d %v", resp.StatusCode, resp.Body)
	}
}

func TestClient_TriggerEmptyBody(t *testing.T) {
	client := newTestClient(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{}` {
			t.Errorf("expected empty object, got %s", body)
		}
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"Run already in progress"}`))
	})

	resp, err := client.Trigger(context.Background(), nil)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if resp.StatusCode != http.StatusConflict || resp.Body["error"] != "Run already in progress" {
		t.Fatalf("expected 409 passthrough, got %d %v", resp.StatusCode, resp.Body)
	}
}

func TestClient_UnauthorizedAddsGuidance(t *testing.T) {
	client := newTestClient(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": "Unauthorized", "hint": "x"})
	})

	for name, call := range map[string]func(context.Context) (*ProxiedResponse, error){
		"trigger": func(ctx context.Context) (*ProxiedResponse, error) { return client.Trigger(ctx, nil) },
		"status":  client.Status,
	} {
		resp, err := call(context.Background())
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		msg, _ := resp.Body["error"].(string)
		if resp.StatusCode != http.StatusUnauthorized || !strings.HasPrefix(msg, "Unauthorized") {
			t.Fatalf("%s: expected 401 passthrough, got %d %q", name, resp.StatusCode, msg)
		}
		if !strings.Contains(msg, "HUNTER_RUN_SECRET") || !strings.Contains(msg, "APIFY_WEBHOOK_SECRET") {
			t.Fatalf("%s: expected secret guidance, got %q", name, msg)
		}
		if resp.Body["hint"] != "x" {
			t.Fatalf("%s: expected other fields kept", name)
		}
	}
}

func TestClient_InternalErrorMessage(t *testing.T) {
	client := newTestClient(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"results":[]}`))
	})

	resp, err := client.Trigger(context.Background(), nil)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if resp.StatusCode != 500 || resp.Body["error"] != "Backend internal error" {
		t.Fatalf("expected generic 500 message, got %d %v", resp.StatusCode, resp.Body)
	}
}

func TestClient_NullBody(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusInternalServerError, http.StatusOK} {
		client := newTestClient(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			w.Write([]byte(`null`))
		})

		resp, err := client.Status(context.Background())
		if err != nil {
			t.Fatalf("%d: unexpected error %v", code, err)
		}
		if resp.StatusCode != code || resp.Body == nil {
			t.Fatalf("%d: expected passthrough with an object body, got %d %v", code, resp.StatusCode, resp.Body)
		}
	}

	client := newTestClient(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`null`))
	})
	resp, err := client.Trigger(context.Background(), nil)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	msg, _ := resp.Body["error"].(string)
	if !strings.HasPrefix(msg, "Unauthorized") || !strings.Contains(msg, "HUNTER_RUN_SECRET") {
		t.Fatalf("expected default message with guidance, got %q", msg)
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	client := newTestClient(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>Bad Gateway</html>`))
	})

	_, err := client.Status(context.Background())
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, 50*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	start := time.Now()
	_, err := client.Trigger(context.Background(), nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if errors.Is(err, ErrUnreachable) {
		t.Fatalf("timeout must be distinct from unreachable")
	}
	if !strings.Contains(err.Error(), "within 50ms") {
		t.Fatalf("expected timeout duration in message, got %q", err.Error())
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout took too long")
	}
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(&config.BackendConfig{URL: url, Timeout: time.Second}, &http.Client{})
	_, err := client.Status(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient(&config.BackendConfig{}, http.DefaultClient)
	if _, err := client.Trigger(context.Background(), nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if client.Timeout() != config.DefaultBackendTimeout {
		t.Fatalf("expected default timeout, got %s", client.Timeout())
	}
}
