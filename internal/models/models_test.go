package models

import (
	"strings"
	"testing"
	"time"
)

func fp(v float64) *float64 { return &v }

func TestIdentityStableAcrossCycles(t *testing.T) {
	a := Listing{Source: SourceTonAPI, ExternalID: "order-1", Collection: "Coll", PriceTON: fp(7.5)}
	b := Listing{Source: SourceGetgems, ExternalID: "order-1", Collection: "coll", PriceTON: fp(7.5)}

	if a.Identity() != b.Identity() {
		t.Error("same lot at same price should hash identically regardless of source and collection case")
	}
}

func TestIdentityChangesWithPrice(t *testing.T) {
	a := Listing{ExternalID: "order-1", Collection: "coll", PriceTON: fp(7.5)}
	b := Listing{ExternalID: "order-1", Collection: "coll", PriceTON: fp(7.0)}

	if a.Identity() == b.Identity() {
		t.Error("a price change must produce a new identity")
	}
}

func TestIdentityFallsBackToAddress(t *testing.T) {
	a := Listing{Address: "EQabc", Collection: "coll", PriceTON: fp(1)}
	b := Listing{ExternalID: "EQabc", Collection: "coll", PriceTON: fp(1)}

	if a.Identity() != b.Identity() {
		t.Error("address should substitute for a missing external id")
	}
}

func TestDisplayNameFallbacks(t *testing.T) {
	cases := []struct {
		listing Listing
		want    string
	}{
		{Listing{Name: "Cat #42", Address: "EQabc"}, "Cat #42"},
		{Listing{Address: "EQabc"}, "EQabc"},
		{Listing{ExternalID: "order-9"}, "order-9"},
		{Listing{}, "NFT"},
	}
	for _, c := range cases {
		if got := c.listing.DisplayName(); got != c.want {
			t.Errorf("DisplayName() = %q, want %q", got, c.want)
		}
	}
}

func TestLinkDerivedFromExplorer(t *testing.T) {
	l := Listing{Address: "EQabc"}
	if got := l.Link(); got != "https://tonviewer.com/EQabc" {
		t.Errorf("Link() = %q, want explorer fallback", got)
	}

	l.URL = "https://getgems.io/nft/EQabc"
	if got := l.Link(); got != l.URL {
		t.Errorf("Link() = %q, want the source URL when present", got)
	}
}

func TestSnapshotCarriesIdentity(t *testing.T) {
	l := Listing{ExternalID: "x", Collection: "c", PriceTON: fp(2), FloorTON: fp(4), DiscountPct: fp(50)}
	now := time.Now()
	snap := l.Snapshot(now)
	if snap.DealID != l.Identity() {
		t.Error("snapshot must carry the listing identity")
	}
	if snap.SeenAt != now || snap.PriceTON != l.PriceTON || snap.DiscountPct != l.DiscountPct {
		t.Error("snapshot must denormalize the listing fields")
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultScannerSettings(1)
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	s.MinDiscountPct = -1
	if err := s.Validate(); err == nil {
		t.Error("negative discount threshold must be rejected")
	}

	s = DefaultScannerSettings(1)
	s.PollSeconds = 5
	if err := s.Validate(); err == nil {
		t.Error("poll interval below 10s must be rejected")
	}

	s = DefaultScannerSettings(1)
	s.MinPriceTON = fp(5)
	s.MaxPriceTON = fp(2)
	if err := s.Validate(); err == nil {
		t.Error("min price above max price must be rejected")
	}
}

func TestAllowsCollection(t *testing.T) {
	s := DefaultScannerSettings(1)
	if !s.AllowsCollection("anything") {
		t.Error("empty allow-list must allow any collection")
	}

	s.Collections = []string{"TON Diamonds", "eqabc"}
	if !s.AllowsCollection("ton diamonds") || !s.AllowsCollection("EQabc") {
		t.Error("allow-list match must be case-insensitive")
	}
	if s.AllowsCollection("other") {
		t.Error("collections outside the list must be rejected")
	}
	if s.AllowsCollection("") {
		t.Error("unknown collection cannot satisfy a non-empty allow-list")
	}
}

func TestPaymentComment(t *testing.T) {
	c1, c2 := PaymentComment(), PaymentComment()
	if !strings.HasPrefix(c1, "nftbot-") || len(c1) != len("nftbot-")+12 {
		t.Errorf("unexpected comment format: %q", c1)
	}
	if c1 == c2 {
		t.Error("comments must be unique")
	}
}
