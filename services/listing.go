package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"listing_hunter/config"
	"listing_hunter/models"
	"listing_hunter/storage"
)

// ListingService backs the dashboard read model and operator triage.
type ListingService struct {
	store   ListingStore
	sources *config.SourcesConfig
}

func NewListingService(store ListingStore, sources *config.SourcesConfig) *ListingService {
	return &ListingService{
		store:   store,
		sources: sources,
	}
}

// ListingFilter mirrors the dashboard controls. Zero values disable a filter.
type ListingFilter struct {
	Source      string
	Status      models.ListingStatus
	City        string
	PriceMin    *int64
	PriceMax    *int64
	ActiveOnly  bool
	AuctionOnly bool
	Sort        string
}

const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

type ListResult struct {
	Listings []models.Listing  `json:"listings"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// List reads every known source in parallel, merges newest first and
// applies the filter. A failed source is reported in Errors; List fails
// only when no source could be read.
func (s *ListingService) List(ctx context.Context, filter ListingFilter) (*ListResult, error) {
	sources := s.sources.Known
	if filter.Source != "" {
		sources = []string{strings.ToLower(filter.Source)}
	}

	var (
		mu       sync.Mutex
		merged   []models.Listing
		failures = map[string]string{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, source := range sources {
		g.Go(func() error {
			listings, err := s.store.ListListings(gctx, source, s.sources.ListLimit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("Listings: read %s failed: %v", source, err)
				failures[source] = err.Error()
				return nil
			}
			merged = append(merged, listings...)
			return nil
		})
	}
	g.Wait()

	if len(sources) > 0 && len(failures) == len(sources) {
		return nil, fmt.Errorf("all %d sources failed", len(sources))
	}

	SortNewestFirst(merged)
	result := &ListResult{Listings: SortListings(FilterListings(merged, filter), filter.Sort)}
	if result.Listings == nil {
		result.Listings = []models.Listing{}
	}
	if len(failures) > 0 {
		result.Errors = failures
	}
	return result, nil
}

func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	l, err := s.store.GetListingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, storage.ErrNotFound
	}
	return l, nil
}

// UpdateStatus sets the triage status. Unknown ids yield storage.ErrNotFound.
func (s *ListingService) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ListingStatus) error {
	if _, ok := models.ParseListingStatus(string(status)); !ok {
		return fmt.Errorf("invalid status %q", status)
	}
	return s.store.UpdateListingStatus(ctx, id, status)
}

type Counts struct {
	BySource map[string]int `json:"bySource"`
	Total    int            `json:"total"`
}

// Counts returns active listing counts per known source. A source whose
// count fails is reported as zero.
func (s *ListingService) Counts(ctx context.Context) Counts {
	counts := Counts{BySource: make(map[string]int, len(s.sources.Known))}

	var mu sync.Mutex
	var g errgroup.Group
	for _, source := range s.sources.Known {
		g.Go(func() error {
			n, err := s.store.CountActive(ctx, source)
			if err != nil {
				log.Printf("Listings: count %s failed: %v", source, err)
				n = 0
			}
			mu.Lock()
			counts.BySource[source] = n
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	for _, n := range counts.BySource {
		counts.Total += n
	}
	return counts
}

// FilterListings applies f without touching the input order.
func FilterListings(listings []models.Listing, f ListingFilter) []models.Listing {
	var out []models.Listing
	for _, l := range listings {
		if f.Source != "" && l.Source != strings.ToLower(f.Source) {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.City != "" && (l.City == nil || !strings.EqualFold(strings.TrimSpace(*l.City), strings.TrimSpace(f.City))) {
			continue
		}
		if f.PriceMin != nil && l.PriceOrZero() < *f.PriceMin {
			continue
		}
		if f.PriceMax != nil && l.PriceOrZero() > *f.PriceMax {
			continue
		}
		if f.ActiveOnly && !l.IsActive() {
			continue
		}
		if f.AuctionOnly {
			if _, ok := l.AuctionTime(); !ok {
				continue
			}
		}
		out = append(out, l)
	}
	return out
}

// SortListings orders by price when order is price_asc or price_desc and
// leaves the slice alone otherwise. Unknown prices sort as zero.
func SortListings(listings []models.Listing, order string) []models.Listing {
	switch order {
	case SortPriceAsc:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].PriceOrZero() < listings[j].PriceOrZero()
		})
	case SortPriceDesc:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].PriceOrZero() > listings[j].PriceOrZero()
		})
	}
	return listings
}

// SortNewestFirst orders by created_at desc then id desc; rows without
// created_at go last.
func SortNewestFirst(listings []models.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		a, b := listings[i].CreatedAt, listings[j].CreatedAt
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		}
		return listings[i].ID.String() > listings[j].ID.String()
	})
}

// IsNotFound reports whether err means the listing does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
