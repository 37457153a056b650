package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Source identifies the adapter a listing came from.
type Source string

const (
	SourceTonAPI  Source = "tonapi"
	SourceGetgems Source = "getgems"
	SourceFeed    Source = "feed"
)

// Listing is one NFT sale offer normalized out of a source backend.
// Price fields are TON amounts. A nil pointer means the backend did not
// supply a usable value; filters must treat it as unknown, never as zero.
type Listing struct {
	Source      Source
	ExternalID  string
	Address     string
	Collection  string
	Name        string
	PriceTON    *float64
	FloorTON    *float64
	DiscountPct *float64
	URL         string
	ImageURL    string
	ListedAt    time.Time // zero when the backend gave no timestamp
}

// Identity returns the deterministic dedup fingerprint of the listing.
// Two cycles that see the same lot at the same price hash identically;
// a price change yields a new identity and the lot becomes re-alertable.
func (l *Listing) Identity() string {
	id := l.ExternalID
	if id == "" {
		id = l.Address
	}
	price := ""
	if l.PriceTON != nil {
		price = strconv.FormatFloat(*l.PriceTON, 'f', 9, 64)
	}
	raw := strings.ToLower(l.Collection) + "|" + id + "|" + price
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DisplayName falls back to the on-chain address or external id when the
// backend gave no human name.
func (l *Listing) DisplayName() string {
	if l.Name != "" {
		return l.Name
	}
	if l.Address != "" {
		return l.Address
	}
	if l.ExternalID != "" {
		return l.ExternalID
	}
	return "NFT"
}

// Link returns the canonical viewer URL, deriving an explorer link from the
// item address when the backend supplied none.
func (l *Listing) Link() string {
	if l.URL != "" {
		return l.URL
	}
	if l.Address != "" {
		return fmt.Sprintf("https://tonviewer.com/%s", l.Address)
	}
	return ""
}

// Snapshot denormalizes the listing into a ledger entry.
func (l *Listing) Snapshot(seenAt time.Time) SeenDeal {
	return SeenDeal{
		DealID:      l.Identity(),
		URL:         l.Link(),
		Collection:  l.Collection,
		Name:        l.DisplayName(),
		PriceTON:    l.PriceTON,
		FloorTON:    l.FloorTON,
		DiscountPct: l.DiscountPct,
		SeenAt:      seenAt,
	}
}

// SeenDeal is a dedup ledger row: the identity plus a snapshot of the
// listing for audit and debugging.
type SeenDeal struct {
	DealID      string
	URL         string
	Collection  string
	Name        string
	PriceTON    *float64
	FloorTON    *float64
	DiscountPct *float64
	SeenAt      time.Time
}
