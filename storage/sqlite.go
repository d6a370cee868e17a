package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"listing_hunter/models"
)

// SQLiteStore is the local single-file backend used when no Supabase
// database is configured.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		source_url TEXT NOT NULL,
		title TEXT,
		description TEXT,
		price_pln INTEGER,
		city TEXT,
		location TEXT,
		region TEXT,
		images JSON,
		status TEXT DEFAULT 'new',
		auction_date TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		notified BOOLEAN DEFAULT FALSE,
		removed_from_source_at DATETIME,
		UNIQUE(source, source_url)
	);

	CREATE TABLE IF NOT EXISTS alert_rules (
		id TEXT PRIMARY KEY,
		email TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_listings_source_created ON listings(source, created_at);
	CREATE INDEX IF NOT EXISTS idx_listings_unnotified ON listings(notified, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

const sqliteListingColumns = `
	id, source, source_url, title, description, price_pln, city, location, region,
	images, COALESCE(status, 'new'), auction_date,
	created_at, updated_at, COALESCE(notified, FALSE), removed_from_source_at`

// sqliteTimeLayout is the format go-sqlite3 writes time.Time parameters in.
const sqliteTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteListing(row rowScanner) (*models.Listing, error) {
	var l models.Listing
	var status string
	var images sql.NullString
	err := row.Scan(
		&l.ID, &l.Source, &l.SourceURL, &l.Title, &l.Description, &l.PricePLN, &l.City, &l.Location, &l.Region,
		&images, &status, &l.AuctionDate,
		&l.CreatedAt, &l.UpdatedAt, &l.Notified, &l.RemovedFromSourceAt,
	)
	if err != nil {
		return nil, err
	}
	if images.Valid && images.String != "" {
		if err := json.Unmarshal([]byte(images.String), &l.Images); err != nil {
			return nil, err
		}
	}
	l.Status = models.ListingStatus(status)
	l.Normalize()
	return &l, nil
}

// UpsertListing mirrors PostgresStore.UpsertListing. A row counts as
// inserted when the id it carries is the one generated for this call.
func (s *SQLiteStore) UpsertListing(ctx context.Context, l *models.Listing) (bool, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := time.Now().UTC()
	if l.CreatedAt == nil {
		l.CreatedAt = &now
	}
	if l.UpdatedAt == nil {
		l.UpdatedAt = &now
	}

	images, err := json.Marshal(l.Images)
	if err != nil {
		return false, err
	}

	generated := l.ID
	var status, createdAt string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO listings (id, source, source_url, title, description, price_pln, city, location,
			images, status, notified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, source_url) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			price_pln = COALESCE(excluded.price_pln, listings.price_pln),
			city = COALESCE(excluded.city, listings.city),
			location = COALESCE(excluded.location, listings.location),
			images = excluded.images,
			updated_at = excluded.updated_at
		RETURNING id, CAST(created_at AS TEXT), COALESCE(status, 'new'), COALESCE(notified, FALSE)`,
		l.ID, l.Source, l.SourceURL, l.Title, l.Description, l.PricePLN, l.City, l.Location,
		string(images), l.Status, l.Notified, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID, &createdAt, &status, &l.Notified)
	if err != nil {
		return false, err
	}
	if t, err := time.Parse(sqliteTimeLayout, createdAt); err == nil {
		l.CreatedAt = &t
	}
	l.Status = models.ListingStatus(status)
	return l.ID == generated, nil
}

func (s *SQLiteStore) GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteListingColumns+` FROM listings WHERE id = ?`, id)
	l, err := scanSQLiteListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (s *SQLiteStore) GetListingBySourceURL(ctx context.Context, source, sourceURL string) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteListingColumns+`
		FROM listings WHERE source = ? AND source_url = ?`, source, sourceURL)
	l, err := scanSQLiteListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (s *SQLiteStore) ListListings(ctx context.Context, source string, limit int) ([]models.Listing, error) {
	return s.queryListings(ctx, `SELECT `+sqliteListingColumns+`
		FROM listings
		WHERE source = ?
		ORDER BY created_at IS NULL, created_at DESC, id DESC
		LIMIT ?`, source, limit)
}

func (s *SQLiteStore) UpdateListingStatus(ctx context.Context, id uuid.UUID, status models.ListingStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CountActive(ctx context.Context, source string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM listings WHERE source = ? AND removed_from_source_at IS NULL`, source).Scan(&count)
	return count, err
}

// MarkRemoved flags a listing as gone from its source. Removed listings are
// excluded from the active counts.
func (s *SQLiteStore) MarkRemoved(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE listings SET removed_from_source_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetUnnotifiedNewListings(ctx context.Context) ([]models.Listing, error) {
	return s.queryListings(ctx, `SELECT `+sqliteListingColumns+`
		FROM listings
		WHERE COALESCE(notified, FALSE) = FALSE AND status = 'new'
		ORDER BY created_at IS NULL, created_at DESC`)
}

func (s *SQLiteStore) MarkNotified(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE listings SET notified = TRUE WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	return err
}

func (s *SQLiteStore) AddAlertRule(ctx context.Context, email string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `INSERT INTO alert_rules (id, email) VALUES (?, ?)`, id, email)
	return id, err
}

func (s *SQLiteStore) GetAlertEmails(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM alert_rules WHERE email IS NOT NULL AND email <> ''`)
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

func (s *SQLiteStore) queryListings(ctx context.Context, query string, args ...any) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanSQLiteListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}
