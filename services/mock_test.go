package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"listing_hunter/models"
	"listing_hunter/storage"
)

// memStore keeps listings in memory keyed by (source, source_url).
type memStore struct {
	mu        sync.Mutex
	listings  map[string]*models.Listing
	emails    []string
	failURL   string
	failList  map[string]bool
	failCount map[string]bool
	notified  [][]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		listings:  map[string]*models.Listing{},
		failList:  map[string]bool{},
		failCount: map[string]bool{},
	}
}

func key(source, url string) string { return source + "\x00" + url }

func (m *memStore) UpsertListing(ctx context.Context, l *models.Listing) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.SourceURL == m.failURL {
		return false, errors.New("write failed")
	}
	if existing, ok := m.listings[key(l.Source, l.SourceURL)]; ok {
		existing.Title = l.Title
		existing.Description = l.Description
		existing.Images = l.Images
		existing.UpdatedAt = l.UpdatedAt
		l.ID = existing.ID
		l.CreatedAt = existing.CreatedAt
		l.Status = existing.Status
		l.Notified = existing.Notified
		return false, nil
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	stored := *l
	m.listings[key(l.Source, l.SourceURL)] = &stored
	return true, nil
}

func (m *memStore) GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.listings {
		if l.ID == id {
			copied := *l
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListListings(ctx context.Context, source string, limit int) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList[source] {
		return nil, errors.New("read failed")
	}
	var out []models.Listing
	for _, l := range m.listings {
		if l.Source == source {
			out = append(out, *l)
		}
	}
	SortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UpdateListingStatus(ctx context.Context, id uuid.UUID, status models.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.listings {
		if l.ID == id {
			l.Status = status
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStore) CountActive(ctx context.Context, source string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCount[source] {
		return 0, errors.New("count failed")
	}
	n := 0
	for _, l := range m.listings {
		if l.Source == source && l.IsActive() {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetUnnotifiedNewListings(ctx context.Context) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Listing
	for _, l := range m.listings {
		if !l.Notified && l.Status == models.StatusNew {
			out = append(out, *l)
		}
	}
	SortNewestFirst(out)
	return out, nil
}

func (m *memStore) MarkNotified(ctx context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, ids)
	for _, id := range ids {
		for _, l := range m.listings {
			if l.ID == id {
				l.Notified = true
			}
		}
	}
	return nil
}

func (m *memStore) GetAlertEmails(ctx context.Context) ([]string, error) {
	return m.emails, nil
}

func (m *memStore) add(l models.Listing) *models.Listing {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = models.StatusNew
	}
	if l.CreatedAt == nil {
		now := time.Now()
		l.CreatedAt = &now
	}
	m.listings[key(l.Source, l.SourceURL)] = &l
	return &l
}

type sentMail struct {
	to, subject, html string
}

type fakeMailer struct {
	fail map[string]bool
	sent []sentMail
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, html string) error {
	if f.fail[to] {
		return errors.New("rejected")
	}
	f.sent = append(f.sent, sentMail{to, subject, html})
	return nil
}

type fakeArchiver struct {
	calls int
	err   error
}

func (f *fakeArchiver) Archive(ctx context.Context, sentAt time.Time, html []byte) (string, error) {
	f.calls++
	return "s3://digests/x.html", f.err
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
