package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"listing_hunter/models"
)

// ErrNotFound is returned when an update addresses a row that does not exist.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// =============================================================================
// Listings
// =============================================================================

const listingColumns = `
	id, source, source_url, title, description, price_pln, city, location, region,
	COALESCE(images, '{}'), COALESCE(status, 'new'), auction_date::text,
	created_at, updated_at, COALESCE(notified, false), removed_from_source_at`

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	var status string
	err := row.Scan(
		&l.ID, &l.Source, &l.SourceURL, &l.Title, &l.Description, &l.PricePLN, &l.City, &l.Location, &l.Region,
		&l.Images, &status, &l.AuctionDate,
		&l.CreatedAt, &l.UpdatedAt, &l.Notified, &l.RemovedFromSourceAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = models.ListingStatus(status)
	l.Normalize()
	return &l, nil
}

// UpsertListing inserts the listing or, when (source, source_url) already
// exists, refreshes its scraped fields. id, created_at, status and notified
// of an existing row are kept and copied back into l.
func (s *PostgresStore) UpsertListing(ctx context.Context, l *models.Listing) (bool, error) {
	query := `
		INSERT INTO listings (
			id, source, source_url, title, description, price_pln, city, location,
			images, status, notified, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			COALESCE($9, '{}'::text[]), COALESCE(NULLIF($10, ''), 'new'), $11,
			COALESCE($12, NOW()), COALESCE($13, NOW())
		)
		ON CONFLICT (source, source_url) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			price_pln = COALESCE(EXCLUDED.price_pln, listings.price_pln),
			city = COALESCE(EXCLUDED.city, listings.city),
			location = COALESCE(EXCLUDED.location, listings.location),
			images = EXCLUDED.images,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, COALESCE(status, 'new'), COALESCE(notified, false), (xmax = 0)`

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}

	var status string
	var inserted bool
	err := s.pool.QueryRow(ctx, query,
		l.ID, l.Source, l.SourceURL, l.Title, l.Description, l.PricePLN, l.City, l.Location,
		l.Images, string(l.Status), l.Notified, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID, &l.CreatedAt, &status, &l.Notified, &inserted)
	if err != nil {
		return false, err
	}
	l.Status = models.ListingStatus(status)
	return inserted, nil
}

func (s *PostgresStore) GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(s.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// ListListings returns the newest listings of one source.
func (s *PostgresStore) ListListings(ctx context.Context, source string, limit int) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings
		WHERE source = $1
		ORDER BY created_at DESC NULLS LAST, id DESC
		LIMIT $2`

	return s.queryListings(ctx, query, source, limit)
}

func (s *PostgresStore) UpdateListingStatus(ctx context.Context, id uuid.UUID, status models.ListingStatus) error {
	query := `UPDATE listings SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountActive(ctx context.Context, source string) (int, error) {
	query := `SELECT COUNT(*) FROM listings WHERE source = $1 AND removed_from_source_at IS NULL`

	var count int
	err := s.pool.QueryRow(ctx, query, source).Scan(&count)
	return count, err
}

// =============================================================================
// Digest
// =============================================================================

func (s *PostgresStore) GetUnnotifiedNewListings(ctx context.Context) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings
		WHERE notified = false AND status = 'new'
		ORDER BY created_at DESC NULLS LAST`

	return s.queryListings(ctx, query)
}

func (s *PostgresStore) MarkNotified(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE listings SET notified = true WHERE id = ANY($1)`
	_, err := s.pool.Exec(ctx, query, ids)
	return err
}

func (s *PostgresStore) GetAlertEmails(ctx context.Context) ([]string, error) {
	query := `SELECT email FROM alert_rules WHERE email IS NOT NULL AND email <> ''`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func (s *PostgresStore) queryListings(ctx context.Context, query string, args ...any) ([]models.Listing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}
