package scraper

import (
	"testing"

	"listing_hunter/config"
	"listing_hunter/models"
)

func TestNormalizePost_MessageAndURL(t *testing.T) {
	raw := models.RawRecord{
		"message": "Dom na sprzedaż, cena 450000 zł",
		"url":     "https://x/1",
	}

	listing := NormalizePost(raw, "Facebook")

	if listing.Title == nil || *listing.Title != "Dom na sprzedaż, cena 450000 zł" {
		t.Fatalf("unexpected title %v", listing.Title)
	}
	if listing.Description == nil || *listing.Description != *listing.Title {
		t.Fatalf("expected description to mirror title")
	}
	if listing.SourceURL != "https://x/1" {
		t.Fatalf("expected source url https://x/1, got %q", listing.SourceURL)
	}
	if listing.Source != "facebook" {
		t.Fatalf("expected lower-cased source, got %q", listing.Source)
	}
	if listing.PricePLN != nil || listing.City != nil || listing.Location != nil {
		t.Fatalf("expected price, city and location to stay nil")
	}
	if listing.Status != models.StatusNew {
		t.Fatalf("expected status new, got %q", listing.Status)
	}

	c := NewKeywordClassifier(config.DefaultSources().Keywords)
	if !c.Matches(*listing.Title) {
		t.Fatalf("expected normalized title to pass the classifier")
	}
}

func TestNormalizePost_Fallbacks(t *testing.T) {
	listing := NormalizePost(models.RawRecord{"likes": 12}, "facebook")

	if listing.Title == nil || *listing.Title != NoTitle {
		t.Fatalf("expected sentinel title, got %v", listing.Title)
	}
	if listing.SourceURL != "" {
		t.Fatalf("expected empty source url, got %q", listing.SourceURL)
	}
	if listing.Images == nil || len(listing.Images) != 0 {
		t.Fatalf("expected empty non-nil images, got %v", listing.Images)
	}
}

func TestNormalizePost_ConcatenatesTextFields(t *testing.T) {
	raw := models.RawRecord{
		"title":   "Mieszkanie",
		"text":    "",
		"message": "  do sprzedania  ",
		"postUrl": "https://fb/p/1",
		"url":     "https://fb/other",
	}

	listing := NormalizePost(raw, "facebook")
	if *listing.Title != "Mieszkanie   do sprzedania" {
		t.Fatalf("unexpected title %q", *listing.Title)
	}
	if listing.SourceURL != "https://fb/p/1" {
		t.Fatalf("expected postUrl to win, got %q", listing.SourceURL)
	}
}

func TestNormalizePost_Images(t *testing.T) {
	raw := models.RawRecord{
		"images": []any{"a.jpg", 7.0, nil, "b.jpg"},
		"image":  "cover.jpg",
	}

	listing := NormalizePost(raw, "facebook")
	want := []string{"a.jpg", "b.jpg", "cover.jpg"}
	if len(listing.Images) != len(want) {
		t.Fatalf("expected %d images, got %v", len(want), listing.Images)
	}
	for i := range want {
		if listing.Images[i] != want[i] {
			t.Fatalf("image %d: expected %s, got %s", i, want[i], listing.Images[i])
		}
	}
}

func TestPlainText(t *testing.T) {
	if got := PlainText("Cena 5 < 6 zł"); got != "Cena 5 < 6 zł" {
		t.Fatalf("text without markup must be unchanged, got %q", got)
	}
	if got := PlainText("<p>Działka<br>Wieliczka</p>"); got != "Działka Wieliczka" {
		t.Fatalf("unexpected plain text %q", got)
	}
}
