package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"listing_hunter/models"
)

// ListingStore is the persistence surface shared by the Postgres, Supabase
// REST and SQLite stores.
type ListingStore interface {
	UpsertListing(ctx context.Context, l *models.Listing) (inserted bool, err error)
	GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListListings(ctx context.Context, source string, limit int) ([]models.Listing, error)
	UpdateListingStatus(ctx context.Context, id uuid.UUID, status models.ListingStatus) error
	CountActive(ctx context.Context, source string) (int, error)
}

// DigestStore selects digest candidates and recipients.
type DigestStore interface {
	GetUnnotifiedNewListings(ctx context.Context) ([]models.Listing, error)
	MarkNotified(ctx context.Context, ids []uuid.UUID) error
	GetAlertEmails(ctx context.Context) ([]string, error)
}

type Store interface {
	ListingStore
	DigestStore
}

// Mailer delivers one HTML message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Archiver keeps a copy of a sent digest and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, sentAt time.Time, html []byte) (string, error)
}
