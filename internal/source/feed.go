package source

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"tondealbot/internal/models"
	"tondealbot/internal/util"
)

// Feed reads listings from a static JSON endpoint: either a bare array or an
// object wrapping one under "items" or "deals". Useful for curated feeds and
// as a test harness for the pipeline.
type Feed struct {
	url    string
	client *http.Client
}

func NewFeed(url string, client *http.Client) *Feed {
	return &Feed{url: url, client: client}
}

func (a *Feed) Name() string { return string(models.SourceFeed) }

func (a *Feed) Fetch(ctx context.Context) []models.Listing {
	var raw any
	err := util.RetryWithBackoff(ctx, 3, time.Second, func() error {
		return getJSON(ctx, a.client, a.url, nil, &raw)
	})
	if err != nil {
		slog.Warn("feed fetch failed", "url", a.url, "error", err)
		return nil
	}

	items := asSlice(raw)
	if items == nil {
		if wrapper := asMap(raw); wrapper != nil {
			items = asSlice(wrapper["items"])
			if items == nil {
				items = asSlice(wrapper["deals"])
			}
		}
	}

	var listings []models.Listing
	for _, it := range items {
		item := asMap(it)
		if item == nil {
			continue
		}
		l := models.Listing{
			Source:      models.SourceFeed,
			ExternalID:  pickString(item, "id", "external_id", "address"),
			Address:     pickString(item, "nft_address", "address"),
			Collection:  pickString(item, "collection", "collection_address"),
			Name:        pickString(item, "name", "nft_name", "title"),
			PriceTON:    pickFloat(item, "price_ton", "price"),
			FloorTON:    pickFloat(item, "floor_price_ton", "fair_price_ton", "floor"),
			DiscountPct: pickFloat(item, "discount_pct", "discount"),
			URL:         pickString(item, "url", "link"),
			ImageURL:    pickString(item, "image", "image_url"),
			ListedAt:    unixTime(item["listed_at"]),
		}
		if l.ExternalID == "" && l.Address == "" {
			continue
		}
		listings = append(listings, l)
	}
	return listings
}
