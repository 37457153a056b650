package aggregate

import (
	"testing"

	"tondealbot/internal/models"
)

func fp(v float64) *float64 { return &v }

func listing(id, coll string, price, floor *float64) models.Listing {
	return models.Listing{ExternalID: id, Collection: coll, PriceTON: price, FloorTON: floor}
}

func TestMergeDeduplicatesFirstWins(t *testing.T) {
	a := []models.Listing{
		{Source: models.SourceTonAPI, ExternalID: "x", Collection: "c", PriceTON: fp(5), Name: "from tonapi"},
	}
	b := []models.Listing{
		{Source: models.SourceGetgems, ExternalID: "x", Collection: "c", PriceTON: fp(5), Name: "from getgems"},
		{Source: models.SourceGetgems, ExternalID: "y", Collection: "c", PriceTON: fp(6)},
	}

	merged := Merge(a, b)
	if len(merged) != 2 {
		t.Fatalf("expected 2 listings after dedup, got %d", len(merged))
	}
	if merged[0].Name != "from tonapi" {
		t.Error("first occurrence across adapters must win")
	}
	if merged[1].ExternalID != "y" {
		t.Error("batch order must be preserved")
	}
}

func TestMergeIdempotent(t *testing.T) {
	batch := []models.Listing{
		listing("a", "c", fp(5), nil),
		listing("b", "c", fp(10), nil),
	}
	once := Merge(batch)
	twice := Merge(once, once)
	if len(once) != len(twice) {
		t.Fatalf("merging the merged set must not change it: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Identity() != twice[i].Identity() {
			t.Error("identities must be stable across repeated aggregation")
		}
	}
}

func TestDiscountFormula(t *testing.T) {
	merged := Merge([]models.Listing{listing("a", "c", fp(7.5), fp(10))})
	if merged[0].DiscountPct == nil {
		t.Fatal("discount should be computed from known floor and price")
	}
	if got := *merged[0].DiscountPct; got != 25.0 {
		t.Errorf("discount = %v, want 25.0", got)
	}
}

func TestDiscountClampedNonNegative(t *testing.T) {
	merged := Merge([]models.Listing{listing("a", "c", fp(12), fp(10))})
	if merged[0].DiscountPct == nil || *merged[0].DiscountPct != 0 {
		t.Errorf("above-floor listing must clamp to 0, got %v", merged[0].DiscountPct)
	}

	merged = Merge([]models.Listing{{ExternalID: "b", DiscountPct: fp(-5)}})
	if merged[0].DiscountPct == nil || *merged[0].DiscountPct != 0 {
		t.Errorf("source-provided negative discount must clamp to 0, got %v", merged[0].DiscountPct)
	}
}

func TestDiscountUnknownStaysNil(t *testing.T) {
	merged := Merge([]models.Listing{listing("a", "", fp(5), nil)})
	if merged[0].DiscountPct != nil {
		t.Error("missing floor with no collection peers must leave discount unknown, not zero")
	}

	merged = Merge([]models.Listing{listing("a", "c", nil, fp(10))})
	if merged[0].DiscountPct != nil {
		t.Error("unknown price must leave discount unknown")
	}
}

func TestInBatchFloorEstimate(t *testing.T) {
	merged := Merge([]models.Listing{
		listing("cheap", "c", fp(4), nil),
		listing("mid", "C", fp(8), nil), // same collection, different case
		listing("other", "d", fp(1), nil),
	})

	mid := merged[1]
	if mid.FloorTON == nil || *mid.FloorTON != 4 {
		t.Fatalf("floor should be the batch minimum for the collection, got %v", mid.FloorTON)
	}
	if mid.DiscountPct == nil || *mid.DiscountPct != 50 {
		t.Errorf("discount should be recomputed from the estimated floor, got %v", mid.DiscountPct)
	}

	cheap := merged[0]
	if cheap.DiscountPct == nil || *cheap.DiscountPct != 0 {
		t.Errorf("the floor listing itself gets discount 0, got %v", cheap.DiscountPct)
	}
}

func TestSourceFloorNotOverwritten(t *testing.T) {
	merged := Merge([]models.Listing{
		listing("a", "c", fp(9), fp(20)),
		listing("b", "c", fp(1), nil),
	})
	if *merged[0].FloorTON != 20 {
		t.Error("a source-provided floor must not be replaced by the batch estimate")
	}
}
