package coach

import (
	"math"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func ladderOf(prices ...float64) []Observation {
	ladder := make([]Observation, len(prices))
	for i, p := range prices {
		ladder[i] = Observation{
			StoreID:  "s" + string(rune('a'+i)),
			Price:    p,
			LastSeen: testNow.Add(-2 * time.Hour),
		}
	}
	return ladder
}

func TestSuggestPrice_MedianStrategy(t *testing.T) {
	s, err := SuggestPrice(SuggestionInput{
		YourPrice: 28,
		Market:    MarketStats{Min: 20, Median: 25, P90: 32, Count: 8},
		Ladder:    ladderOf(20, 22, 24, 25, 26, 28, 30, 32),
		Strategy:  StrategyMedian,
	}, testNow)
	if err != nil {
		t.Fatalf("SuggestPrice failed: %v", err)
	}
	if s.Suggested != 25.0 {
		t.Fatalf("expected 25.0, got %v", s.Suggested)
	}
	if s.Guardrail != GuardrailOK {
		t.Fatalf("expected ok guardrail, got %s", s.Guardrail)
	}
	if s.Reason != "Match market median of $25.00" {
		t.Fatalf("unexpected reason: %q", s.Reason)
	}
}

func TestSuggestPrice_WinUndercutsMin(t *testing.T) {
	// 22.00 * 0.99 = 21.78, rounded to the nearest $0.10 -> 21.80.
	s, err := SuggestPrice(SuggestionInput{
		YourPrice: 25,
		Market:    MarketStats{Min: 22, Median: 26, P90: 30, Count: 6},
		Ladder:    ladderOf(22, 24, 26, 27, 28, 30),
		Strategy:  StrategyWin,
	}, testNow)
	if err != nil {
		t.Fatalf("SuggestPrice failed: %v", err)
	}
	if s.Suggested != 21.8 {
		t.Fatalf("expected 21.80, got %v", s.Suggested)
	}
	if s.ExpectedRank != 1 {
		t.Fatalf("expected rank 1, got %d", s.ExpectedRank)
	}
}

func TestSuggestPrice_HoldAboveBand(t *testing.T) {
	// 8 entries, band [0.4, 0.6]: low idx 3 -> 26, high idx 4 -> 28.
	// yourPrice 30 is above 28, so decrease to the band's high edge.
	ladder := ladderOf(20, 22, 24, 26, 28, 30, 32, 34)
	s, err := SuggestPrice(SuggestionInput{
		YourPrice: 30,
		Market:    MarketStats{Min: 20, Median: 28, P90: 34, Count: 8},
		Ladder:    ladder,
		Strategy:  StrategyHold,
	}, testNow)
	if err != nil {
		t.Fatalf("SuggestPrice failed: %v", err)
	}
	if s.Suggested != 28.0 {
		t.Fatalf("expected 28.0, got %v", s.Suggested)
	}
	if s.Reason != "Decrease to upper band (p60)" {
		t.Fatalf("unexpected reason: %q", s.Reason)
	}
}

func TestSuggestPrice_HoldWithinBand(t *testing.T) {
	ladder := ladderOf(20, 22, 24, 26, 28, 30, 32, 34)
	s, err := SuggestPrice(SuggestionInput{
		YourPrice: 27,
		Market:    MarketStats{Min: 20, Median: 28, P90: 34, Count: 8},
		Ladder:    ladder,
		Strategy:  StrategyHold,
	}, testNow)
	if err != nil {
		t.Fatalf("SuggestPrice failed: %v", err)
	}
	if s.Suggested != 27.0 {
		t.Fatalf("expected unchanged 27.0, got %v", s.Suggested)
	}
	if s.Reason != "Currently within target band (p40-p60)" {
		t.Fatalf("unexpected reason: %q", s.Reason)
	}
}

func TestSuggestPrice_CustomDelta(t *testing.T) {
	s, err := SuggestPrice(SuggestionInput{
		YourPrice: 28,
		Market:    MarketStats{Min: 20, Median: 25, P90: 32, Count: 8},
		Ladder:    ladderOf(20, 22, 24, 25, 26, 28, 30, 32),
		Strategy:  StrategyCustom,
		Params:    CustomParams{DeltaPct: 10},
	}, testNow)
	if err != nil {
		t.Fatalf("SuggestPrice failed: %v", err)
	}
	// 25 * 1.10 = 27.5
	if s.Suggested != 27.5 {
		t.Fatalf("expected 27.5, got %v", s.Suggested)
	}
	if s.Reason != "Custom delta: +10% from median" {
		t.Fatalf("unexpected reason: %q", s.Reason)
	}
}

func TestSuggestPrice_DeadBandSnapsBack(t *testing.T) {
	// Median 28.05 rounds to 28.1, within $0.10 of 28.02 -> no change.
	s, err := SuggestPrice(SuggestionInput{
		YourPrice: 28.02,
		Market:    MarketStats{Min: 25, Median: 28.05, P90: 30, Count: 5},
		Ladder:    ladderOf(25, 27, 28.05, 29, 30),
		Strategy:  StrategyMedian,
	}, testNow)
	if err != nil {
		t.Fatalf("SuggestPrice failed: %v", err)
	}
	if s.Suggested != 28.02 {
		t.Fatalf("expected snap back to 28.02, got %v", s.Suggested)
	}
	if s.Reason != "No change recommended (difference < $0.10)" {
		t.Fatalf("unexpected reason: %q", s.Reason)
	}
}

func TestSuggestPrice_LowSampleShortCircuits(t *testing.T) {
	for _, count := range []int{0, 3} {
		ladder := ladderOf(20, 24, 30)[:count]
		s, err := SuggestPrice(SuggestionInput{
			YourPrice: 26,
			Market:    MarketStats{Count: count},
			Ladder:    ladder,
			Strategy:  StrategyWin,
		}, testNow)
		if err != nil {
			t.Fatalf("count %d: SuggestPrice failed: %v", count, err)
		}
		if s.Guardrail != GuardrailLowSample {
			t.Fatalf("count %d: expected low_sample, got %s", count, s.Guardrail)
		}
		if s.Suggested != 26 {
			t.Fatalf("count %d: expected unchanged price, got %v", count, s.Suggested)
		}
		// Rank is still computed from the thin ladder for display.
		if want := RankInLadder(26, ladder); s.ExpectedRank != want {
			t.Fatalf("count %d: expected rank %d, got %d", count, want, s.ExpectedRank)
		}
	}
}

func TestSuggestPrice_ZeroMedianGuarded(t *testing.T) {
	s, err := SuggestPrice(SuggestionInput{
		YourPrice: 26,
		Market:    MarketStats{Min: 0, Median: 0, P90: 0, Count: 5},
		Ladder:    ladderOf(20, 22, 24, 26, 28),
		Strategy:  StrategyCustom,
	}, testNow)
	if err != nil {
		t.Fatalf("SuggestPrice failed: %v", err)
	}
	if s.Guardrail != GuardrailLowSample {
		t.Fatalf("expected low_sample, got %s", s.Guardrail)
	}
	if s.Suggested != 26 {
		t.Fatalf("expected unchanged price, got %v", s.Suggested)
	}
	if math.IsNaN(s.Suggested) || math.IsInf(s.Suggested, 0) {
		t.Fatalf("suggested must be finite, got %v", s.Suggested)
	}
}

func TestSuggestPrice_StaleObservationFlagged(t *testing.T) {
	ladder := ladderOf(20, 22, 24, 26, 28)
	ladder[2].LastSeen = testNow.Add(-72 * time.Hour)

	s, err := SuggestPrice(SuggestionInput{
		YourPrice: 26,
		Market:    MarketStats{Min: 20, Median: 24, P90: 28, Count: 5},
		Ladder:    ladder,
		Strategy:  StrategyMedian,
	}, testNow)
	if err != nil {
		t.Fatalf("SuggestPrice failed: %v", err)
	}
	if s.Guardrail != GuardrailStale {
		t.Fatalf("expected stale, got %s", s.Guardrail)
	}
	if s.Suggested != 24.0 {
		t.Fatalf("stale data should still produce a suggestion, got %v", s.Suggested)
	}
}

func TestSuggestPrice_LowConfidenceFromMapping(t *testing.T) {
	mc := 0.5
	s, err := SuggestPrice(SuggestionInput{
		YourPrice:         26,
		Market:            MarketStats{Min: 20, Median: 24, P90: 28, Count: 4},
		Ladder:            ladderOf(20, 22, 24, 28),
		Strategy:          StrategyMedian,
		MappingConfidence: &mc,
	}, testNow)
	if err != nil {
		t.Fatalf("SuggestPrice failed: %v", err)
	}
	// 4 stores (-20), fresh data, mapping < 0.8 (-20) -> 60, still above the
	// threshold... but count 4 hits the <8 penalty: 100-20-20 = 60. Push it
	// under with the mapping penalty alone requires a thinner sample, so
	// verify the 60 case stays ok first.
	if s.Guardrail != GuardrailOK {
		t.Fatalf("expected ok at confidence 60, got %s", s.Guardrail)
	}

	stale := ladderOf(20, 22, 24, 28)
	for i := range stale {
		stale[i].LastSeen = testNow.Add(-30 * time.Hour)
	}
	s, err = SuggestPrice(SuggestionInput{
		YourPrice:         26,
		Market:            MarketStats{Min: 20, Median: 24, P90: 28, Count: 4},
		Ladder:            stale,
		Strategy:          StrategyMedian,
		MappingConfidence: &mc,
	}, testNow)
	if err != nil {
		t.Fatalf("SuggestPrice failed: %v", err)
	}
	// 100 - 20 (sample) - 15 (recency) - 20 (mapping) = 45 < 50.
	if s.Guardrail != GuardrailLowConfidence {
		t.Fatalf("expected low_confidence, got %s", s.Guardrail)
	}
}

func TestSuggestPrice_RoundedToTenth(t *testing.T) {
	ladder := ladderOf(19.99, 22.49, 24.37, 26.13, 28.88, 31.01)
	for _, strategy := range []Strategy{StrategyMedian, StrategyWin, StrategyHold, StrategyCustom} {
		s, err := SuggestPrice(SuggestionInput{
			YourPrice: 27.77,
			Market:    MarketStats{Min: 19.99, Median: 26.13, P90: 31.01, Count: 6},
			Ladder:    ladder,
			Strategy:  strategy,
		}, testNow)
		if err != nil {
			t.Fatalf("%s: SuggestPrice failed: %v", strategy, err)
		}
		cents := math.Round(s.Suggested * 100)
		if s.Suggested != 27.77 && math.Mod(cents, 10) != 0 {
			t.Fatalf("%s: suggested %v not rounded to $0.10", strategy, s.Suggested)
		}
	}
}

func TestSuggestPrice_ValidationErrors(t *testing.T) {
	base := SuggestionInput{
		YourPrice: 26,
		Market:    MarketStats{Min: 20, Median: 24, P90: 28, Count: 5},
		Ladder:    ladderOf(20, 22, 24, 26, 28),
		Strategy:  StrategyMedian,
	}

	bad := base
	bad.YourPrice = -1
	if _, err := SuggestPrice(bad, testNow); err == nil {
		t.Fatalf("expected error for negative price")
	}

	bad = base
	bad.Strategy = Strategy("undercut")
	if _, err := SuggestPrice(bad, testNow); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}

	bad = base
	bad.Strategy = StrategyCustom
	bad.Params = CustomParams{DeltaPct: -120}
	if _, err := SuggestPrice(bad, testNow); err == nil {
		t.Fatalf("expected error for delta_pct below -100")
	}

	bad = base
	bad.Params = WinParams{BelowMinPct: 0.01}
	if _, err := SuggestPrice(bad, testNow); err == nil {
		t.Fatalf("expected error for mismatched params")
	}

	bad = base
	bad.Strategy = StrategyHold
	bad.Params = HoldParams{Band: [2]float64{0.8, 0.2}}
	if _, err := SuggestPrice(bad, testNow); err == nil {
		t.Fatalf("expected error for inverted band")
	}
}

func TestRankInLadder(t *testing.T) {
	ladder := ladderOf(20, 24, 24, 28)

	if got := RankInLadder(18, ladder); got != 1 {
		t.Fatalf("rank below all: expected 1, got %d", got)
	}
	// Ties do not push the probe down.
	if got := RankInLadder(24, ladder); got != 2 {
		t.Fatalf("rank at tie: expected 2, got %d", got)
	}
	if got := RankInLadder(30, ladder); got != 5 {
		t.Fatalf("rank above all: expected len+1=5, got %d", got)
	}
	if got := RankInLadder(22, nil); got != 1 {
		t.Fatalf("rank in empty ladder: expected 1, got %d", got)
	}
}

func TestRankInLadder_Monotonic(t *testing.T) {
	ladder := ladderOf(19.99, 22.49, 24.37, 24.37, 26.13, 28.88, 31.01)
	prev := 0
	for price := 15.0; price <= 35.0; price += 0.25 {
		rank := RankInLadder(price, ladder)
		if rank < prev {
			t.Fatalf("rank decreased from %d to %d at price %v", prev, rank, price)
		}
		prev = rank
	}
}

func TestSuggestPrice_RankIdempotent(t *testing.T) {
	ladder := ladderOf(20, 22, 24, 26, 28, 30)
	for _, strategy := range []Strategy{StrategyMedian, StrategyWin, StrategyHold, StrategyCustom} {
		s, err := SuggestPrice(SuggestionInput{
			YourPrice: 27,
			Market:    MarketStats{Min: 20, Median: 26, P90: 30, Count: 6},
			Ladder:    ladder,
			Strategy:  strategy,
		}, testNow)
		if err != nil {
			t.Fatalf("%s: SuggestPrice failed: %v", strategy, err)
		}
		if got := RankInLadder(s.Suggested, ladder); got != s.ExpectedRank {
			t.Fatalf("%s: rank of own suggestion %d != expected rank %d", strategy, got, s.ExpectedRank)
		}
	}
}
