package httputil

import (
	"net/http"
	"time"

	"listing_hunter/config"
)

type Clients struct {
	API     *http.Client // Apify datasets and Supabase REST
	Backend *http.Client // run proxy; deadline comes from the request context
}

func NewClients(backendCfg *config.BackendConfig) *Clients {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = 90 * time.Second

	return &Clients{
		API: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Backend: &http.Client{
			// Outer bound only. The backend client cancels at cfg.Timeout.
			Timeout:   backendCfg.Timeout + 5*time.Second,
			Transport: transport,
		},
	}
}
