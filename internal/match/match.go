// Package match filters a listing set against one user's preferences and
// ranks the survivors best-deal-first.
package match

import (
	"sort"
	"time"

	"tondealbot/internal/models"
)

// Select returns the listings passing s's filters, ordered by descending
// discount then ascending price. The sort is stable, so ties keep their
// batch order and results are reproducible for identical input.
func Select(listings []models.Listing, s models.UserScannerSettings, now time.Time, lookback time.Duration) []models.Listing {
	var out []models.Listing
	for _, l := range listings {
		if passes(l, s, now, lookback) {
			out = append(out, l)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].DiscountPct, out[j].DiscountPct
		switch {
		case di != nil && dj != nil && *di != *dj:
			return *di > *dj
		case di != nil && dj == nil:
			return true // unknown discount sorts last
		case di == nil && dj != nil:
			return false
		}
		pi, pj := out[i].PriceTON, out[j].PriceTON
		switch {
		case pi != nil && pj != nil:
			return *pi < *pj
		case pi != nil && pj == nil:
			return true // unknown price sorts last
		default:
			return false
		}
	})
	return out
}

// passes evaluates the filter predicate in fixed order, short-circuiting on
// the first failure: freshness, discount, price bounds, collection list.
func passes(l models.Listing, s models.UserScannerSettings, now time.Time, lookback time.Duration) bool {
	if lookback > 0 && !l.ListedAt.IsZero() && now.Sub(l.ListedAt) > lookback {
		return false
	}

	if l.DiscountPct != nil {
		if *l.DiscountPct < s.MinDiscountPct {
			return false
		}
	} else if s.MinDiscountPct > 0 {
		// A listing with no computable discount cannot satisfy a positive
		// discount requirement.
		return false
	}

	if s.MaxPriceTON != nil {
		if l.PriceTON == nil || *l.PriceTON > *s.MaxPriceTON {
			return false
		}
	}
	if s.MinPriceTON != nil {
		if l.PriceTON == nil || *l.PriceTON < *s.MinPriceTON {
			return false
		}
	}

	return s.AllowsCollection(l.Collection)
}
