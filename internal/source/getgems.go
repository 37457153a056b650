package source

import (
	"context"
	"log/slog"
	"net/http"

	"tondealbot/internal/models"
	"tondealbot/internal/ton"
)

// getgemsQuery asks for the cheapest current listings of one collection.
const getgemsQuery = `
query NftSearch($collection: String!, $count: Int!) {
  alphaNftItemSearch(filter: {collectionAddress: $collection, forSale: true}, sort: "price_asc", first: $count) {
    edges {
      node {
        address
        name
        sale { fullPrice }
        collection { address name floorPrice }
        content { image { baseUrl } }
      }
    }
  }
}`

type Getgems struct {
	url         string
	collections []string
	client      *http.Client
}

func NewGetgems(url string, collections []string, client *http.Client) *Getgems {
	return &Getgems{url: url, collections: collections, client: client}
}

func (a *Getgems) Name() string { return string(models.SourceGetgems) }

func (a *Getgems) Fetch(ctx context.Context) []models.Listing {
	var listings []models.Listing
	for _, collection := range a.collections {
		listings = append(listings, a.fetchCollection(ctx, collection)...)
	}
	return listings
}

// fetchCollection queries one collection, retrying each known address form
// until the first that returns edges. Getgems indexes the bounceable form,
// but configs frequently carry raw or non-bounceable addresses.
func (a *Getgems) fetchCollection(ctx context.Context, collection string) []models.Listing {
	for _, form := range ton.AddressForms(collection) {
		var resp struct {
			Data struct {
				Search struct {
					Edges []struct {
						Node map[string]any `json:"node"`
					} `json:"edges"`
				} `json:"alphaNftItemSearch"`
			} `json:"data"`
		}
		payload := map[string]any{
			"query":     getgemsQuery,
			"variables": map[string]any{"collection": form, "count": 50},
		}
		if err := postJSON(ctx, a.client, a.url, payload, &resp); err != nil {
			slog.Warn("getgems fetch failed", "collection", form, "error", err)
			continue
		}
		if len(resp.Data.Search.Edges) == 0 {
			continue
		}

		var listings []models.Listing
		for _, edge := range resp.Data.Search.Edges {
			if l, ok := a.normalize(edge.Node); ok {
				listings = append(listings, l)
			}
		}
		return listings
	}
	return nil
}

func (a *Getgems) normalize(node map[string]any) (models.Listing, bool) {
	addr := pickString(node, "address")
	if addr == "" {
		return models.Listing{}, false
	}

	sale := asMap(node["sale"])
	if sale == nil {
		// Indexed but not currently for sale.
		return models.Listing{}, false
	}
	price := nanoToTON(pickFloat(sale, "fullPrice", "price"))

	var collection string
	var floor *float64
	if collObj := asMap(node["collection"]); collObj != nil {
		collection = pickString(collObj, "address", "name")
		floor = nanoToTON(pickFloat(collObj, "floorPrice"))
	}

	var image string
	if content := asMap(node["content"]); content != nil {
		if img := asMap(content["image"]); img != nil {
			image = pickString(img, "baseUrl", "url")
		}
	}

	return models.Listing{
		Source:     models.SourceGetgems,
		ExternalID: addr,
		Address:    addr,
		Collection: collection,
		Name:       pickString(node, "name"),
		PriceTON:   price,
		FloorTON:   floor,
		URL:        "https://getgems.io/nft/" + addr,
		ImageURL:   image,
		ListedAt:   unixTime(node["listedAt"]),
	}, true
}
