package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"listing_hunter/config"
	"listing_hunter/models"
)

// ErrTokenMissing is returned when no Apify API token is configured.
var ErrTokenMissing = errors.New("APIFY_TOKEN not configured")

// DatasetError reports a non-200 answer from the dataset items endpoint.
type DatasetError struct {
	StatusCode int
	Body       string
}

func (e *DatasetError) Error() string {
	return fmt.Sprintf("apify dataset fetch failed %d: %s", e.StatusCode, e.Body)
}

// ApifyClient reads finished actor datasets from the Apify API.
type ApifyClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewApifyClient(cfg *config.ApifyConfig, client *http.Client) *ApifyClient {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = config.DefaultApifyAPIBase
	}
	return &ApifyClient{
		baseURL: base,
		token:   cfg.Token,
		client:  client,
	}
}

func (c *ApifyClient) Configured() bool {
	return c.token != ""
}

// FetchItems returns every item of the dataset. Items that are not JSON
// objects are logged and dropped.
func (c *ApifyClient) FetchItems(ctx context.Context, datasetID string) ([]models.RawRecord, error) {
	if c.token == "" {
		return nil, ErrTokenMissing
	}

	endpoint := fmt.Sprintf("%s/datasets/%s/items?format=json&clean=true", c.baseURL, url.PathEscape(datasetID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset %s: %w", datasetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &DatasetError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", datasetID, err)
	}

	records := make([]models.RawRecord, 0, len(items))
	for i, item := range items {
		var record models.RawRecord
		if err := json.Unmarshal(item, &record); err != nil || record == nil {
			log.Printf("Apify: dataset %s item %d is not an object, skipping", datasetID, i)
			continue
		}
		records = append(records, record)
	}

	return records, nil
}
