package coach

import "math"

// PopularityScore blends market presence, promo frequency, and recent-arrival
// velocity into a 0-100 score. Coverage dominates; arrivals are capped so
// spiky restock data cannot run the score away.
func PopularityScore(coveragePct, promoRate float64, arrivals int) int {
	coverageScore := coveragePct * 0.6
	promoScore := promoRate * 100 * 0.25
	churnScore := math.Min(float64(arrivals)/10, 1) * 100 * 0.15

	score := int(math.Round(coverageScore + promoScore + churnScore))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// ConfidenceScore grades data quality by applying independent, additive
// penalties for thin samples, stale observations, and uncertain variant
// mapping. It is a lowest-common-denominator quality score, not a
// probabilistic confidence interval.
func ConfidenceScore(storeCount int, recencyHours float64, mappingConfidence float64) int {
	score := 100

	switch {
	case storeCount < 4:
		score -= 40
	case storeCount < 8:
		score -= 20
	case storeCount < 12:
		score -= 10
	}

	switch {
	case recencyHours > 48:
		score -= 30
	case recencyHours > 24:
		score -= 15
	case recencyHours > 12:
		score -= 5
	}

	switch {
	case mappingConfidence < 0.8:
		score -= 20
	case mappingConfidence < 0.9:
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	return score
}

// Gap is the distance between a seller's price and the market median.
type Gap struct {
	Dollars float64 `json:"dollars"`
	Percent float64 `json:"percent"`
}

// GapToMedian reports how far yourPrice sits from the median in dollars and
// percent. A zero median yields a zero percent rather than Inf/NaN.
func GapToMedian(yourPrice, median float64) Gap {
	g := Gap{Dollars: yourPrice - median}
	if median != 0 {
		g.Percent = (yourPrice - median) / median * 100
	}
	return g
}
