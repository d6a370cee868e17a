package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"listing_hunter/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "hunter.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func TestSQLiteStore_UpsertInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	first := &models.Listing{
		Source:    "facebook",
		SourceURL: "https://fb.com/p/1",
		Title:     strPtr("Sprzedam dom"),
		PricePLN:  int64Ptr(45000000),
		City:      strPtr("Kraków"),
		Images:    []string{"a.jpg"},
		Status:    models.StatusNew,
	}
	inserted, err := store.UpsertListing(ctx, first)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !inserted {
		t.Fatalf("expected first upsert to insert")
	}
	originalID := first.ID

	if err := store.UpdateListingStatus(ctx, originalID, models.StatusContacted); err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	if err := store.MarkNotified(ctx, []uuid.UUID{originalID}); err != nil {
		t.Fatalf("mark notified failed: %v", err)
	}

	second := &models.Listing{
		Source:    "facebook",
		SourceURL: "https://fb.com/p/1",
		Title:     strPtr("Sprzedam dom z ogrodem"),
		Images:    []string{"b.jpg", "c.jpg"},
		Status:    models.StatusNew,
	}
	inserted, err = store.UpsertListing(ctx, second)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if inserted {
		t.Fatalf("expected second upsert to update")
	}
	if second.ID != originalID {
		t.Fatalf("expected id %s to be kept, got %s", originalID, second.ID)
	}

	got, err := store.GetListingBySourceURL(ctx, "facebook", "https://fb.com/p/1")
	if err != nil || got == nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.TitleOrEmpty() != "Sprzedam dom z ogrodem" {
		t.Fatalf("expected refreshed title, got %q", got.TitleOrEmpty())
	}
	if got.PricePLN == nil || *got.PricePLN != 45000000 {
		t.Fatalf("expected price to be kept, got %v", got.PricePLN)
	}
	if got.City == nil || *got.City != "Kraków" {
		t.Fatalf("expected city to be kept, got %v", got.City)
	}
	if len(got.Images) != 2 {
		t.Fatalf("expected images to be replaced, got %v", got.Images)
	}
	if got.Status != models.StatusContacted {
		t.Fatalf("expected status contacted to survive, got %s", got.Status)
	}
	if !got.Notified {
		t.Fatalf("expected notified flag to survive")
	}
}

func TestSQLiteStore_UpdateStatusUnknownID(t *testing.T) {
	store := newTestSQLiteStore(t)

	err := store.UpdateListingStatus(context.Background(), uuid.New(), models.StatusViewed)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_ListListingsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i, u := range []string{"https://x/1", "https://x/2", "https://x/3"} {
		created := base.Add(time.Duration(i) * time.Hour)
		l := &models.Listing{Source: "komornik", SourceURL: u, Status: models.StatusNew, CreatedAt: &created}
		if _, err := store.UpsertListing(ctx, l); err != nil {
			t.Fatalf("upsert %s: %v", u, err)
		}
	}
	other := &models.Listing{Source: "amw", SourceURL: "https://x/9", Status: models.StatusNew}
	if _, err := store.UpsertListing(ctx, other); err != nil {
		t.Fatalf("upsert other: %v", err)
	}

	listings, err := store.ListListings(ctx, "komornik", 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected limit 2, got %d", len(listings))
	}
	if listings[0].SourceURL != "https://x/3" || listings[1].SourceURL != "https://x/2" {
		t.Fatalf("unexpected order: %s, %s", listings[0].SourceURL, listings[1].SourceURL)
	}
	if listings[0].Images == nil {
		t.Fatalf("expected images normalized to empty slice")
	}
}

func TestSQLiteStore_CountActiveSkipsRemoved(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	var ids []uuid.UUID
	for _, u := range []string{"https://e/1", "https://e/2", "https://e/3"} {
		l := &models.Listing{Source: "e_licytacje", SourceURL: u, Status: models.StatusNew}
		if _, err := store.UpsertListing(ctx, l); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		ids = append(ids, l.ID)
	}
	if err := store.MarkRemoved(ctx, ids[0], time.Now()); err != nil {
		t.Fatalf("mark removed: %v", err)
	}

	count, err := store.CountActive(ctx, "e_licytacje")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 active, got %d", count)
	}

	count, err = store.CountActive(ctx, "amw")
	if err != nil || count != 0 {
		t.Fatalf("expected 0 for empty source, got %d (%v)", count, err)
	}
}

func TestSQLiteStore_DigestQueries(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	fresh := &models.Listing{Source: "facebook", SourceURL: "https://fb/1", Status: models.StatusNew}
	viewed := &models.Listing{Source: "facebook", SourceURL: "https://fb/2", Status: models.StatusNew}
	for _, l := range []*models.Listing{fresh, viewed} {
		if _, err := store.UpsertListing(ctx, l); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := store.UpdateListingStatus(ctx, viewed.ID, models.StatusViewed); err != nil {
		t.Fatalf("update status: %v", err)
	}

	pending, err := store.GetUnnotifiedNewListings(ctx)
	if err != nil {
		t.Fatalf("unnotified: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != fresh.ID {
		t.Fatalf("expected only the new listing, got %+v", pending)
	}

	if err := store.MarkNotified(ctx, []uuid.UUID{fresh.ID}); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	pending, err = store.GetUnnotifiedNewListings(ctx)
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %d (%v)", len(pending), err)
	}

	if _, err := store.AddAlertRule(ctx, "a@example.com"); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	if _, err := store.AddAlertRule(ctx, ""); err != nil {
		t.Fatalf("add empty rule: %v", err)
	}
	emails, err := store.GetAlertEmails(ctx)
	if err != nil {
		t.Fatalf("alert emails: %v", err)
	}
	if len(emails) != 1 || emails[0] != "a@example.com" {
		t.Fatalf("unexpected emails %v", emails)
	}
}
