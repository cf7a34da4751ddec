package coach

import "testing"

func TestPopularityScore(t *testing.T) {
	// 0.6*80 + 0.25*30 + 0.15*50 = 48 + 7.5 + 7.5 = 63
	if got := PopularityScore(80, 0.3, 5); got != 63 {
		t.Fatalf("expected 63, got %d", got)
	}
	// Arrivals capped at 10: churn term maxes out at 15.
	if got := PopularityScore(100, 1.0, 500); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
	if got := PopularityScore(0, 0, 0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestConfidenceScore(t *testing.T) {
	if got := ConfidenceScore(12, 2, 0.95); got != 100 {
		t.Fatalf("healthy data: expected 100, got %d", got)
	}
	// Penalties are independent and additive: -40 -30 -20 = 10.
	if got := ConfidenceScore(2, 72, 0.5); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	// Mid tiers: -20 (count<8), -15 (>24h), -10 (<0.9).
	if got := ConfidenceScore(6, 30, 0.85); got != 55 {
		t.Fatalf("expected 55, got %d", got)
	}
	// Floor at zero even though penalties could go below.
	if got := ConfidenceScore(1, 100, 0); got < 0 {
		t.Fatalf("score must not go negative, got %d", got)
	}
}

func TestConfidenceScore_OrderIndependent(t *testing.T) {
	// Each penalty reads its own input, so any combination is just a sum.
	a := ConfidenceScore(5, 36, 0.85)
	sample := 100 - ConfidenceScore(5, 0, 1)
	recency := 100 - ConfidenceScore(100, 36, 1)
	mapping := 100 - ConfidenceScore(100, 0, 0.85)
	if a != 100-sample-recency-mapping {
		t.Fatalf("penalties not additive: %d vs %d", a, 100-sample-recency-mapping)
	}
}

func TestGapToMedian(t *testing.T) {
	g := GapToMedian(25, 20)
	if g.Dollars != 5 {
		t.Fatalf("expected 5 dollars, got %v", g.Dollars)
	}
	if g.Percent != 25 {
		t.Fatalf("expected 25 percent, got %v", g.Percent)
	}

	// Equal prices gap to zero for any nonzero median.
	g = GapToMedian(25, 25)
	if g.Dollars != 0 || g.Percent != 0 {
		t.Fatalf("expected zero gap, got %+v", g)
	}

	// Zero median must not produce Inf/NaN.
	g = GapToMedian(25, 0)
	if g.Dollars != 25 || g.Percent != 0 {
		t.Fatalf("expected {25, 0} for zero median, got %+v", g)
	}
}
