// Package aggregate merges adapter batches into one deduplicated listing set
// and fills in missing floor prices and discounts.
package aggregate

import (
	"strings"

	"tondealbot/internal/models"
)

// Merge concatenates the batches, deduplicates by identity (first occurrence
// wins, order preserved across adapters), estimates missing floors from the
// batch itself, and recomputes discounts. Output order is the input order;
// ranking is the matcher's job.
func Merge(batches ...[]models.Listing) []models.Listing {
	var merged []models.Listing
	seen := make(map[string]bool)
	for _, batch := range batches {
		for _, l := range batch {
			id := l.Identity()
			if seen[id] {
				continue
			}
			seen[id] = true
			merged = append(merged, l)
		}
	}

	fillFloors(merged)

	for i := range merged {
		fillDiscount(&merged[i])
	}
	return merged
}

// fillFloors sets a missing floor to the minimum positive price observed for
// the same collection within this batch. This is a same-cycle estimate, not a
// historical floor: with few simultaneous listings it is noisy, and a lone
// listing becomes its own floor (discount 0). Known limitation.
func fillFloors(listings []models.Listing) {
	floors := make(map[string]float64)
	for _, l := range listings {
		if l.Collection == "" || l.PriceTON == nil || *l.PriceTON <= 0 {
			continue
		}
		key := strings.ToLower(l.Collection)
		if cur, ok := floors[key]; !ok || *l.PriceTON < cur {
			floors[key] = *l.PriceTON
		}
	}
	for i := range listings {
		l := &listings[i]
		if l.FloorTON != nil || l.Collection == "" {
			continue
		}
		if floor, ok := floors[strings.ToLower(l.Collection)]; ok {
			f := floor
			l.FloorTON = &f
			// Estimated floor supersedes any source-provided discount.
			l.DiscountPct = nil
		}
	}
}

// fillDiscount derives discount_pct from floor and price when both are known
// and positive. Discounts are clamped at zero: an above-floor listing is not
// a match, never a negative percentage.
func fillDiscount(l *models.Listing) {
	if l.DiscountPct == nil && l.PriceTON != nil && l.FloorTON != nil && *l.PriceTON > 0 && *l.FloorTON > 0 {
		d := (*l.FloorTON - *l.PriceTON) / *l.FloorTON * 100
		l.DiscountPct = &d
	}
	if l.DiscountPct != nil && *l.DiscountPct < 0 {
		zero := 0.0
		l.DiscountPct = &zero
	}
}
