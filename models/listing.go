package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ListingStatus string

const (
	StatusNew       ListingStatus = "new"
	StatusContacted ListingStatus = "contacted"
	StatusViewed    ListingStatus = "viewed"
	StatusArchived  ListingStatus = "archived"
)

var ListingStatuses = []ListingStatus{StatusNew, StatusContacted, StatusViewed, StatusArchived}

// ParseListingStatus reports whether s is one of the triage states.
func ParseListingStatus(s string) (ListingStatus, bool) {
	for _, status := range ListingStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

// Listing is a scraped property opportunity. PricePLN is in grosze
// (PricePLN / 100 = PLN); nil means the price is unknown.
type Listing struct {
	ID                  uuid.UUID     `json:"id" db:"id"`
	Source              string        `json:"source" db:"source"`
	SourceURL           string        `json:"source_url" db:"source_url"`
	Title               *string       `json:"title" db:"title"`
	Description         *string       `json:"description" db:"description"`
	PricePLN            *int64        `json:"price_pln" db:"price_pln"`
	City                *string       `json:"city" db:"city"`
	Location            *string       `json:"location" db:"location"`
	Region              *string       `json:"region" db:"region"`
	Images              []string      `json:"images" db:"images"`
	Status              ListingStatus `json:"status" db:"status"`
	AuctionDate         *string       `json:"auction_date" db:"auction_date"`
	CreatedAt           *time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt           *time.Time    `json:"updated_at" db:"updated_at"`
	Notified            bool          `json:"notified" db:"notified"`
	RemovedFromSourceAt *time.Time    `json:"removed_from_source_at" db:"removed_from_source_at"`
}

// Normalize applies the read-side conventions: lower-cased source, a
// non-nil image slice, "new" for a missing status and nil for a blank
// auction date.
func (l *Listing) Normalize() {
	l.Source = strings.ToLower(strings.TrimSpace(l.Source))
	if l.Images == nil {
		l.Images = []string{}
	}
	if l.Status == "" {
		l.Status = StatusNew
	}
	if l.AuctionDate != nil && strings.TrimSpace(*l.AuctionDate) == "" {
		l.AuctionDate = nil
	}
}

// IsActive is false once the source has delisted the listing.
func (l *Listing) IsActive() bool {
	return l.RemovedFromSourceAt == nil
}

var auctionLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// AuctionTime parses AuctionDate. A missing or unparsable value means the
// listing is not an auction.
func (l *Listing) AuctionTime() (time.Time, bool) {
	if l.AuctionDate == nil {
		return time.Time{}, false
	}
	value := strings.TrimSpace(*l.AuctionDate)
	for _, layout := range auctionLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PriceOrZero is used for price filtering and sorting, where an unknown
// price sorts as zero.
func (l *Listing) PriceOrZero() int64 {
	if l.PricePLN == nil {
		return 0
	}
	return *l.PricePLN
}

func (l *Listing) TitleOrEmpty() string {
	if l.Title == nil {
		return ""
	}
	return *l.Title
}

// AlertRule holds a digest recipient.
type AlertRule struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Email string    `json:"email" db:"email"`
}
