package services

import (
	"context"
	"log"
	"time"

	"listing_hunter/models"
	"listing_hunter/scraper"
)

// IngestionService turns a scraped dataset into listings.
type IngestionService struct {
	store      ListingStore
	classifier *scraper.KeywordClassifier
}

func NewIngestionService(store ListingStore, classifier *scraper.KeywordClassifier) *IngestionService {
	return &IngestionService{
		store:      store,
		classifier: classifier,
	}
}

// Ingest keeps the items whose post text mentions a sale, normalizes them
// and upserts them under source. Items without a URL cannot be deduplicated
// and are skipped. A failed write is logged and counted nowhere.
func (s *IngestionService) Ingest(ctx context.Context, source string, items []models.RawRecord) models.IngestResult {
	var result models.IngestResult

	for _, item := range items {
		text := scraper.PostText(item)
		if text == "" || !s.classifier.Matches(text) {
			continue
		}
		result.Total++

		listing := scraper.NormalizePost(item, source)
		if listing.SourceURL == "" {
			result.Skipped++
			continue
		}

		if ctx.Err() != nil {
			log.Printf("Ingest: %s: stopping early: %v", source, ctx.Err())
			break
		}

		now := time.Now().UTC()
		listing.CreatedAt = &now
		listing.UpdatedAt = &now

		inserted, err := s.store.UpsertListing(ctx, &listing)
		if err != nil {
			log.Printf("Ingest: %s: upsert %s failed: %v", source, listing.SourceURL, err)
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	log.Printf("Ingest: %s: total=%d inserted=%d updated=%d skipped=%d",
		source, result.Total, result.Inserted, result.Updated, result.Skipped)
	return result
}
