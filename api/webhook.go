package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"listing_hunter/scraper"
)

const (
	webhookSecretHeader = "X-Apify-Webhook-Secret"
	runSucceededEvent   = "ACTOR.RUN.SUCCEEDED"
)

type webhookPayload struct {
	EventType string `json:"eventType"`
	DatasetID string `json:"datasetId"`
	Resource  *struct {
		ID               string `json:"id"`
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"resource"`
}

func (p *webhookPayload) datasetID() string {
	if p.DatasetID != "" {
		return p.DatasetID
	}
	if p.Resource == nil {
		return ""
	}
	if p.Resource.DefaultDatasetID != "" {
		return p.Resource.DefaultDatasetID
	}
	return p.Resource.ID
}

type webhookResponse struct {
	OK       bool `json:"ok"`
	Total    int  `json:"total"`
	Inserted int  `json:"inserted"`
	Updated  int  `json:"updated"`
	Skipped  int  `json:"skipped"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	source, ok := s.cfg.Sources.WebhookSource(mux.Vars(r)["slug"])
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown webhook")
		return
	}

	if !secretEqual(r.Header.Get(webhookSecretHeader), s.cfg.Apify.WebhookSecret) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if payload.EventType != "" && payload.EventType != runSucceededEvent {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"skipped": "eventType != " + runSucceededEvent,
		})
		return
	}

	datasetID := payload.datasetID()
	if datasetID == "" {
		writeError(w, http.StatusBadRequest, "Missing datasetId")
		return
	}

	if !s.deps.Datasets.Configured() {
		writeError(w, http.StatusInternalServerError, scraper.ErrTokenMissing.Error())
		return
	}

	items, err := s.deps.Datasets.FetchItems(r.Context(), datasetID)
	if err != nil {
		if errors.Is(err, scraper.ErrTokenMissing) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Printf("Webhook: dataset %s: %v", datasetID, err)
		writeError(w, http.StatusBadGateway, "Failed to fetch dataset")
		return
	}

	result := s.deps.Ingest.Ingest(r.Context(), source, items)
	writeJSON(w, http.StatusOK, webhookResponse{
		OK:       true,
		Total:    result.Total,
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Skipped:  result.Skipped,
	})
}
