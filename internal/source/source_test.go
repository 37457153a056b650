package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tondealbot/internal/models"
)

func testClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func TestTonAPIEndpointFallback(t *testing.T) {
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		switch r.URL.Path {
		case "/marketplace/orders":
			http.Error(w, "gone", http.StatusNotFound)
		case "/market/active-orders":
			fmt.Fprint(w, `{"orders": [
				{"id": "o1", "nft_address": "EQone", "name": "One", "price_ton": 3.5, "floor_price_ton": 5},
				{"id": "o2", "address": "EQtwo", "price": {"value": "2500000000"}}
			]}`)
		default:
			http.Error(w, "unexpected", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	a := NewTonAPI(srv.URL, "test-token", testClient())
	got := a.Fetch(context.Background())

	if len(got) != 2 {
		t.Fatalf("expected 2 listings from the fallback endpoint, got %d", len(got))
	}
	if len(hits) != 2 {
		t.Fatalf("expected exactly one retry onto the second endpoint, got requests %v", hits)
	}

	if got[0].ExternalID != "o1" || *got[0].PriceTON != 3.5 || *got[0].FloorTON != 5 {
		t.Errorf("first listing parsed wrong: %+v", got[0])
	}
	// Nested nanoTON price value is normalized to TON.
	if got[1].PriceTON == nil || *got[1].PriceTON != 2.5 {
		t.Errorf("nested nanoTON price should normalize to 2.5, got %v", got[1].PriceTON)
	}
}

func TestTonAPIStopsAtFirstEndpointWithData(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `{"items": [{"id": "x", "price": 1}]}`)
	}))
	defer srv.Close()

	a := NewTonAPI(srv.URL, "test-token", testClient())
	a.Fetch(context.Background())
	if hits != 1 {
		t.Errorf("must stop at the first endpoint that returns data, got %d requests", hits)
	}
}

func TestTonAPIExcludesNotForSale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"nft_items": [
			{"address": "EQidle", "sale": null},
			{"address": "EQlisted", "sale": {"price": {"value": "1000000000"}}}
		]}`)
	}))
	defer srv.Close()

	a := NewTonAPI(srv.URL, "test-token", testClient())
	got := a.Fetch(context.Background())

	if len(got) != 1 {
		t.Fatalf("item with a null sale must be excluded, got %d listings", len(got))
	}
	if got[0].Address != "EQlisted" || *got[0].PriceTON != 1.0 {
		t.Errorf("sale price parsed wrong: %+v", got[0])
	}
}

func TestTonAPIErrorYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `not json at all`)
	}))
	defer srv.Close()

	a := NewTonAPI(srv.URL, "test-token", testClient())
	if got := a.Fetch(context.Background()); len(got) != 0 {
		t.Fatal("unparsable bodies must yield an empty batch, never an error")
	}
}

func TestTonAPISkippedWithoutToken(t *testing.T) {
	a := NewTonAPI("http://invalid.example", "", testClient())
	if got := a.Fetch(context.Background()); got != nil {
		t.Fatal("adapter without credentials must return empty without making requests")
	}
}

func TestFeedAdapterShapes(t *testing.T) {
	bodies := []string{
		`[{"id": "a", "collection": "c", "price_ton": "4.5", "discount": 30}]`,
		`{"items": [{"address": "EQa", "price": 4.5}]}`,
		`{"deals": [{"id": "a", "floor": 9, "price": 4.5, "listed_at": 1754000000}]}`,
	}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, body)
		}))
		a := NewFeed(srv.URL, testClient())
		got := a.Fetch(context.Background())
		srv.Close()

		if len(got) != 1 {
			t.Fatalf("body %s: expected 1 listing, got %d", body, len(got))
		}
		if got[0].PriceTON == nil || *got[0].PriceTON != 4.5 {
			t.Errorf("body %s: price parsed wrong: %v", body, got[0].PriceTON)
		}
		if got[0].Source != models.SourceFeed {
			t.Errorf("listing must be tagged with its source")
		}
	}
}

func TestFeedSkipsItemsWithoutIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"name": "no id at all", "price": 1}, {"id": "ok", "price": 2}]`)
	}))
	defer srv.Close()

	a := NewFeed(srv.URL, testClient())
	got := a.Fetch(context.Background())
	if len(got) != 1 || got[0].ExternalID != "ok" {
		t.Fatalf("items without an id or address cannot be fingerprinted and must be dropped, got %d", len(got))
	}
}

func TestGetgemsParsesEdges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"alphaNftItemSearch": {"edges": [
			{"node": {
				"address": "EQitem",
				"name": "Item #1",
				"sale": {"fullPrice": "3000000000"},
				"collection": {"address": "EQcoll", "name": "Coll", "floorPrice": "4000000000"},
				"content": {"image": {"baseUrl": "https://img.example/1.png"}}
			}},
			{"node": {"address": "EQnosale", "sale": null}}
		]}}}`)
	}))
	defer srv.Close()

	a := NewGetgems(srv.URL, []string{"EQcoll"}, testClient())
	got := a.Fetch(context.Background())

	if len(got) != 1 {
		t.Fatalf("expected 1 for-sale listing, got %d", len(got))
	}
	l := got[0]
	if *l.PriceTON != 3.0 || *l.FloorTON != 4.0 {
		t.Errorf("nanoTON prices parsed wrong: price=%v floor=%v", l.PriceTON, l.FloorTON)
	}
	if l.Collection != "EQcoll" || l.ImageURL != "https://img.example/1.png" {
		t.Errorf("node fields parsed wrong: %+v", l)
	}
	if l.URL != "https://getgems.io/nft/EQitem" {
		t.Errorf("viewer URL = %q", l.URL)
	}
}

func TestPickHelpersTolerateTypes(t *testing.T) {
	m := map[string]any{"a": "1.5", "b": 2.0, "c": "", "d": "x"}
	if f := pickFloat(m, "missing", "a"); f == nil || *f != 1.5 {
		t.Errorf("pickFloat string number = %v", f)
	}
	if f := pickFloat(m, "b"); f == nil || *f != 2.0 {
		t.Errorf("pickFloat float = %v", f)
	}
	if f := pickFloat(m, "c", "d"); f != nil {
		t.Errorf("unparsable values must come back nil, got %v", f)
	}
	if s := pickString(m, "c", "b"); s != "2" {
		t.Errorf("pickString should render numbers, got %q", s)
	}
}
