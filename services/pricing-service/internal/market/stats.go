package market

import (
	"sort"

	"github.com/budradar/budradar/services/pricing-service/internal/coach"
)

// Stats computes MarketStats from a raw ladder. The ladder is not required to
// be pre-sorted and may be empty; an empty ladder yields the zero stats with
// Count 0, which downstream code treats as a low_sample condition.
func Stats(ladder []coach.Observation) coach.MarketStats {
	if len(ladder) == 0 {
		return coach.MarketStats{}
	}

	prices := make([]float64, len(ladder))
	for i, obs := range ladder {
		prices[i] = obs.Price
	}
	sort.Float64s(prices)

	n := len(prices)
	p90Idx := int(float64(n) * 0.9)
	if p90Idx >= n {
		p90Idx = n - 1
	}

	return coach.MarketStats{
		Min:    prices[0],
		Median: prices[n/2],
		P90:    prices[p90Idx],
		Count:  n,
	}
}
