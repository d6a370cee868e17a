package models

// RawRecord is one untyped item from a scraping platform dataset. Field
// names differ between actors (title/text/message, postUrl/url, ...).
type RawRecord map[string]any

// String returns the field as a string when it holds a non-empty string.
func (r RawRecord) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// IngestResult aggregates the outcome of one ingestion batch. Total counts
// items that passed the keyword filter; Skipped counts those among them
// without a source URL.
type IngestResult struct {
	Total    int `json:"total"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

type DigestResult struct {
	ListingsCount int    `json:"listingsCount"`
	EmailsSent    int    `json:"emailsSent"`
	Recipients    int    `json:"recipients"`
	Message       string `json:"message,omitempty"`
}
