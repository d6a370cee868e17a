package models

import "testing"

func strPtr(s string) *string { return &s }

func TestParseListingStatus(t *testing.T) {
	for _, s := range []string{"new", "contacted", "viewed", "archived"} {
		if _, ok := ParseListingStatus(s); !ok {
			t.Errorf("expected %q to be accepted", s)
		}
	}
	for _, s := range []string{"", "bogus", "NEW", "sold"} {
		if _, ok := ParseListingStatus(s); ok {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestListing_AuctionTime(t *testing.T) {
	tests := []struct {
		name  string
		date  *string
		valid bool
	}{
		{"missing", nil, false},
		{"rfc3339", strPtr("2026-11-02T10:00:00Z"), true},
		{"postgres text", strPtr("2026-11-02 10:00:00.123+00"), true},
		{"postgres text with minutes", strPtr("2026-11-02 10:00:00+00:00"), true},
		{"date only", strPtr("2026-11-02"), true},
		{"garbage", strPtr("jutro"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Listing{AuctionDate: tt.date}
			if _, ok := l.AuctionTime(); ok != tt.valid {
				t.Fatalf("expected valid=%v, got %v", tt.valid, ok)
			}
		})
	}
}

func TestListing_Normalize(t *testing.T) {
	l := Listing{Source: " Komornik ", AuctionDate: strPtr("  ")}
	l.Normalize()

	if l.Source != "komornik" {
		t.Errorf("expected lower-cased source, got %q", l.Source)
	}
	if l.Status != StatusNew {
		t.Errorf("expected default status new, got %q", l.Status)
	}
	if l.Images == nil {
		t.Errorf("expected non-nil images")
	}
	if l.AuctionDate != nil {
		t.Errorf("expected blank auction date to become nil")
	}
}
