package source

import (
	"context"
	"log/slog"
	"net/http"

	"tondealbot/internal/models"
)

// tonAPIPaths are queried in priority order; the first endpoint that returns
// listings wins and the rest are skipped. Older TonAPI revisions exposed
// marketplace orders under different routes.
var tonAPIPaths = []string{
	"/marketplace/orders?limit=50",
	"/market/active-orders?limit=50",
}

type TonAPI struct {
	base   string
	token  string
	client *http.Client
}

func NewTonAPI(base, token string, client *http.Client) *TonAPI {
	return &TonAPI{base: base, token: token, client: client}
}

func (a *TonAPI) Name() string { return string(models.SourceTonAPI) }

func (a *TonAPI) Fetch(ctx context.Context) []models.Listing {
	if a.token == "" {
		slog.Debug("TONAPI_TOKEN not set, skipping tonapi source")
		return nil
	}
	headers := map[string]string{"Authorization": "Bearer " + a.token}

	for _, path := range tonAPIPaths {
		var data map[string]any
		if err := getJSON(ctx, a.client, a.base+path, headers, &data); err != nil {
			slog.Warn("tonapi fetch failed", "path", path, "error", err)
			continue
		}

		candidates := asSlice(data["orders"])
		if len(candidates) == 0 {
			candidates = asSlice(data["items"])
		}
		if len(candidates) == 0 {
			candidates = asSlice(data["nft_items"])
		}

		var listings []models.Listing
		for _, c := range candidates {
			item := asMap(c)
			if item == nil {
				continue
			}
			l, ok := a.normalize(item)
			if ok {
				listings = append(listings, l)
			}
		}
		if len(listings) > 0 {
			return listings
		}
	}
	return nil
}

func (a *TonAPI) normalize(item map[string]any) (models.Listing, bool) {
	// An item carrying an explicit null sale is on-chain but not for sale.
	if sale, present := item["sale"]; present && sale == nil {
		return models.Listing{}, false
	}

	price := pickFloat(item, "price_ton")
	if price == nil {
		if priceObj := asMap(item["price"]); priceObj != nil {
			price = nanoToTON(pickFloat(priceObj, "value"))
		} else {
			price = pickFloat(item, "price")
		}
	}
	if price == nil {
		if saleObj := asMap(item["sale"]); saleObj != nil {
			if priceObj := asMap(saleObj["price"]); priceObj != nil {
				price = nanoToTON(pickFloat(priceObj, "value"))
			}
		}
	}

	collection := pickString(item, "collection")
	if collObj := asMap(item["collection"]); collObj != nil {
		collection = pickString(collObj, "address", "name")
	}

	l := models.Listing{
		Source:     models.SourceTonAPI,
		ExternalID: pickString(item, "id", "order_id", "nft_item_id", "address"),
		Address:    pickString(item, "nft_address", "address"),
		Collection: collection,
		Name:       pickString(item, "name", "nft_name"),
		PriceTON:   price,
		FloorTON:   pickFloat(item, "fair_price_ton", "floor_price_ton"),
		URL:        pickString(item, "url", "link"),
		ImageURL:   pickString(item, "image", "image_url", "preview"),
		ListedAt:   unixTime(item["listed_at"]),
	}
	l.DiscountPct = pickFloat(item, "discount_pct")

	if l.ExternalID == "" && l.Address == "" {
		return models.Listing{}, false
	}
	return l, true
}
