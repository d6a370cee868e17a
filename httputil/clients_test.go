package httputil

import (
	"testing"
	"time"

	"listing_hunter/config"
)

func TestNewClients(t *testing.T) {
	clients := NewClients(&config.BackendConfig{Timeout: 50 * time.Second})

	if clients.API.Timeout != 30*time.Second {
		t.Fatalf("unexpected API timeout %s", clients.API.Timeout)
	}
	if clients.Backend.Timeout <= 50*time.Second {
		t.Fatalf("backend client must outlive the request deadline, got %s", clients.Backend.Timeout)
	}
	if clients.API.Transport != clients.Backend.Transport {
		t.Fatalf("expected a shared transport")
	}
}
