package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"listing_hunter/config"
	"listing_hunter/models"
)

// SupabaseStore talks to the Supabase REST (PostgREST) API with the
// service-role key. It is used when only SUPABASE_URL is configured.
type SupabaseStore struct {
	url        string
	serviceKey string
	client     *http.Client
}

func NewSupabaseStore(cfg *config.SupabaseConfig) *SupabaseStore {
	return &SupabaseStore{
		url:        strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type upsertListingArgs struct {
	ID          uuid.UUID  `json:"p_id"`
	Source      string     `json:"p_source"`
	SourceURL   string     `json:"p_source_url"`
	Title       *string    `json:"p_title"`
	Description *string    `json:"p_description"`
	PricePLN    *int64     `json:"p_price_pln"`
	City        *string    `json:"p_city"`
	Location    *string    `json:"p_location"`
	Images      []string   `json:"p_images"`
	Status      string     `json:"p_status"`
	CreatedAt   *time.Time `json:"p_created_at"`
	UpdatedAt   *time.Time `json:"p_updated_at"`
}

type upsertListingRow struct {
	ID        uuid.UUID  `json:"id"`
	CreatedAt *time.Time `json:"created_at"`
	Status    string     `json:"status"`
	Notified  bool       `json:"notified"`
	Inserted  bool       `json:"inserted"`
}

// UpsertListing calls the upsert_listing function from schema.sql, which
// runs the same ON CONFLICT statement as PostgresStore.
func (s *SupabaseStore) UpsertListing(ctx context.Context, l *models.Listing) (bool, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	images := l.Images
	if images == nil {
		images = []string{}
	}

	args := upsertListingArgs{
		ID:          l.ID,
		Source:      l.Source,
		SourceURL:   l.SourceURL,
		Title:       l.Title,
		Description: l.Description,
		PricePLN:    l.PricePLN,
		City:        l.City,
		Location:    l.Location,
		Images:      images,
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}

	var rows []upsertListingRow
	if err := s.do(ctx, http.MethodPost, "/rest/v1/rpc/upsert_listing", nil, args, "", &rows); err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, fmt.Errorf("upsert_listing returned no row for %s", l.SourceURL)
	}

	row := rows[0]
	l.ID = row.ID
	l.CreatedAt = row.CreatedAt
	l.Status = models.ListingStatus(row.Status)
	l.Notified = row.Notified
	return row.Inserted, nil
}

func (s *SupabaseStore) GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	q := url.Values{}
	q.Set("id", "eq."+id.String())
	return s.getOne(ctx, q)
}

func (s *SupabaseStore) ListListings(ctx context.Context, source string, limit int) ([]models.Listing, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("source", "eq."+source)
	q.Set("order", "created_at.desc.nullslast,id.desc")
	q.Set("limit", strconv.Itoa(limit))
	return s.listListings(ctx, q)
}

func (s *SupabaseStore) UpdateListingStatus(ctx context.Context, id uuid.UUID, status models.ListingStatus) error {
	q := url.Values{}
	q.Set("id", "eq."+id.String())
	body := map[string]any{"status": status, "updated_at": time.Now().UTC()}

	var rows []map[string]any
	if err := s.do(ctx, http.MethodPatch, "/rest/v1/listings", q, body, "return=representation", &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActive asks PostgREST for an exact count and reads it from the
// Content-Range header.
func (s *SupabaseStore) CountActive(ctx context.Context, source string) (int, error) {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("source", "eq."+source)
	q.Set("removed_from_source_at", "is.null")

	req, err := s.newRequest(ctx, http.MethodHead, "/rest/v1/listings", q, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("supabase error %d counting %s", resp.StatusCode, source)
	}
	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

func (s *SupabaseStore) GetUnnotifiedNewListings(ctx context.Context) ([]models.Listing, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("notified", "eq.false")
	q.Set("status", "eq.new")
	q.Set("order", "created_at.desc.nullslast")
	return s.listListings(ctx, q)
}

func (s *SupabaseStore) MarkNotified(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	q := url.Values{}
	q.Set("id", "in.("+strings.Join(parts, ",")+")")
	return s.do(ctx, http.MethodPatch, "/rest/v1/listings", q, map[string]bool{"notified": true}, "return=minimal", nil)
}

func (s *SupabaseStore) GetAlertEmails(ctx context.Context) ([]string, error) {
	q := url.Values{}
	q.Set("select", "email")
	q.Set("email", "not.is.null")

	var rules []models.AlertRule
	if err := s.do(ctx, http.MethodGet, "/rest/v1/alert_rules", q, nil, "", &rules); err != nil {
		return nil, err
	}

	var emails []string
	for _, r := range rules {
		if r.Email != "" {
			emails = append(emails, r.Email)
		}
	}
	return emails, nil
}

func (s *SupabaseStore) getOne(ctx context.Context, q url.Values) (*models.Listing, error) {
	q.Set("select", "*")
	q.Set("limit", "1")
	listings, err := s.listListings(ctx, q)
	if err != nil || len(listings) == 0 {
		return nil, err
	}
	return &listings[0], nil
}

func (s *SupabaseStore) listListings(ctx context.Context, q url.Values) ([]models.Listing, error) {
	var listings []models.Listing
	if err := s.do(ctx, http.MethodGet, "/rest/v1/listings", q, nil, "", &listings); err != nil {
		return nil, err
	}
	for i := range listings {
		listings[i].Normalize()
	}
	return listings, nil
}

func (s *SupabaseStore) newRequest(ctx context.Context, method, path string, q url.Values, body any) (*http.Request, error) {
	endpoint := s.url + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	return req, nil
}

func (s *SupabaseStore) do(ctx context.Context, method, path string, q url.Values, body any, prefer string, out any) error {
	req, err := s.newRequest(ctx, method, path, q, body)
	if err != nil {
		return err
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("supabase error %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseContentRangeTotal reads N from "0-24/N" or "*/N".
func parseContentRangeTotal(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("missing count in Content-Range %q", header)
	}
	total := header[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("count not computed in Content-Range %q", header)
	}
	return strconv.Atoi(total)
}
