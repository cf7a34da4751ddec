package coach

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Observation is one competitor's currently known price for a product variant.
// Produced by the price feed; the coach only reads it.
type Observation struct {
	StoreID  string    `json:"store_id"`
	Price    float64   `json:"price"`
	LastSeen time.Time `json:"last_seen"`
	OnSale   bool      `json:"on_sale"`
}

// MarketStats aggregates a ladder: min <= median <= p90 whenever Count > 0.
type MarketStats struct {
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Count  int     `json:"count"`
}

type Strategy string

const (
	StrategyMedian Strategy = "median"
	StrategyWin    Strategy = "win"
	StrategyHold   Strategy = "hold"
	StrategyCustom Strategy = "custom"
)

// Guardrail flags data-quality conditions on a suggestion. These are not
// errors: the caller decides whether to suppress display.
type Guardrail string

const (
	GuardrailOK            Guardrail = "ok"
	GuardrailLowSample     Guardrail = "low_sample"
	GuardrailStale         Guardrail = "stale"
	GuardrailLowConfidence Guardrail = "low_confidence"
)

const (
	minSampleSize  = 4
	staleAfter     = 48 * time.Hour
	priceStep      = 0.10
	lowConfidence  = 50
	defaultBandLow = 0.4
	defaultBandHi  = 0.6
)

// Params is the strategy-specific tuning knob set. Each strategy has its own
// concrete type so that, say, a hold band can never be passed to "win".
type Params interface {
	strategy() Strategy
	validate() error
}

type MedianParams struct{}

type WinParams struct {
	// BelowMinPct is the fraction to undercut the cheapest listed competitor
	// by, e.g. 0.01 for 1%.
	BelowMinPct float64 `json:"below_min_pct"`
}

type HoldParams struct {
	// Band is the [low, high] percentile pair defining the target cluster.
	Band [2]float64 `json:"band"`
}

type CustomParams struct {
	// DeltaPct is a percentage offset from the market median, e.g. -5 or 12.
	DeltaPct float64 `json:"delta_pct"`
}

func (MedianParams) strategy() Strategy { return StrategyMedian }
func (WinParams) strategy() Strategy    { return StrategyWin }
func (HoldParams) strategy() Strategy   { return StrategyHold }
func (CustomParams) strategy() Strategy { return StrategyCustom }

func (MedianParams) validate() error { return nil }

func (p WinParams) validate() error {
	if p.BelowMinPct < 0 || p.BelowMinPct >= 1 {
		return fmt.Errorf("below_min_pct must be in [0, 1), got %v", p.BelowMinPct)
	}
	return nil
}

func (p HoldParams) validate() error {
	low, high := p.Band[0], p.Band[1]
	if low < 0 || high > 1 || low > high {
		return fmt.Errorf("band must satisfy 0 <= low <= high <= 1, got [%v, %v]", low, high)
	}
	return nil
}

func (p CustomParams) validate() error {
	if p.DeltaPct < -100 {
		return fmt.Errorf("delta_pct must be >= -100, got %v", p.DeltaPct)
	}
	return nil
}

func defaultParams(s Strategy) Params {
	switch s {
	case StrategyWin:
		return WinParams{BelowMinPct: 0.01}
	case StrategyHold:
		return HoldParams{Band: [2]float64{defaultBandLow, defaultBandHi}}
	case StrategyCustom:
		return CustomParams{DeltaPct: 0}
	default:
		return MedianParams{}
	}
}

// SuggestionInput carries everything a single suggestion needs. The coach
// never reaches into ambient state; ladders and stats are always injected.
type SuggestionInput struct {
	YourPrice float64
	Market    MarketStats
	Ladder    []Observation
	Strategy  Strategy
	// Params may be nil, in which case the strategy's defaults apply.
	Params Params
	// MappingConfidence, when set, is the feed's 0..1 confidence that ladder
	// entries map to the same variant. It feeds the low_confidence guardrail.
	MappingConfidence *float64
}

type Suggestion struct {
	Suggested    float64   `json:"suggested"`
	Reason       string    `json:"reason"`
	ExpectedRank int       `json:"expected_rank"`
	Guardrail    Guardrail `json:"guardrail"`
}

// Validate rejects programmer errors: these indicate a caller bug or corrupt
// reference data, never a business condition.
func (in SuggestionInput) Validate() error {
	if in.YourPrice <= 0 {
		return fmt.Errorf("your_price must be positive, got %v", in.YourPrice)
	}
	switch in.Strategy {
	case StrategyMedian, StrategyWin, StrategyHold, StrategyCustom:
	default:
		return fmt.Errorf("unknown strategy %q", in.Strategy)
	}
	for _, obs := range in.Ladder {
		if obs.Price <= 0 {
			return fmt.Errorf("ladder price for store %q must be positive, got %v", obs.StoreID, obs.Price)
		}
	}
	if in.Params != nil {
		if in.Params.strategy() != in.Strategy {
			return fmt.Errorf("params for strategy %q do not match requested strategy %q", in.Params.strategy(), in.Strategy)
		}
		if err := in.Params.validate(); err != nil {
			return err
		}
	}
	return nil
}

// SuggestPrice computes a suggested price under the chosen strategy.
// Thin or stale market data never fails the call; it is surfaced through the
// Guardrail field on a best-effort suggestion. now is injected so the stale
// check stays referentially transparent.
func SuggestPrice(in SuggestionInput, now time.Time) (Suggestion, error) {
	if err := in.Validate(); err != nil {
		return Suggestion{}, err
	}

	params := in.Params
	if params == nil {
		params = defaultParams(in.Strategy)
	}

	// Guardrails come first and short-circuit the strategy math. The rank is
	// still computed from the thin ladder so the caller can show context.
	if in.Market.Count < minSampleSize || len(in.Ladder) == 0 {
		reason := fmt.Sprintf("Insufficient market data (need >=%d stores)", minSampleSize)
		if in.Market.Count == 0 || len(in.Ladder) == 0 {
			reason = "No market data available"
		}
		return Suggestion{
			Suggested:    in.YourPrice,
			Reason:       reason,
			ExpectedRank: RankInLadder(in.YourPrice, in.Ladder),
			Guardrail:    GuardrailLowSample,
		}, nil
	}
	if in.Market.Median == 0 {
		return Suggestion{
			Suggested:    in.YourPrice,
			Reason:       "No market data available",
			ExpectedRank: RankInLadder(in.YourPrice, in.Ladder),
			Guardrail:    GuardrailLowSample,
		}, nil
	}

	var suggested float64
	var reason string

	switch p := params.(type) {
	case MedianParams:
		suggested = roundToTenth(in.Market.Median)
		reason = fmt.Sprintf("Match market median of $%.2f", in.Market.Median)

	case WinParams:
		minPrice := math.Inf(1)
		for _, obs := range in.Ladder {
			if obs.Price < minPrice {
				minPrice = obs.Price
			}
		}
		suggested = roundToTenth(minPrice * (1 - p.BelowMinPct))
		reason = fmt.Sprintf("Win the aisle: %.1f%% below market min", p.BelowMinPct*100)

	case HoldParams:
		prices := sortedPrices(in.Ladder)
		lowIdx := bandIndex(len(prices), p.Band[0])
		highIdx := bandIndex(len(prices), p.Band[1])
		lowEdge, highEdge := prices[lowIdx], prices[highIdx]
		lowP, highP := int(math.Round(p.Band[0]*100)), int(math.Round(p.Band[1]*100))

		switch {
		case in.YourPrice < lowEdge:
			suggested = roundToTenth(lowEdge)
			reason = fmt.Sprintf("Increase to lower band (p%d)", lowP)
		case in.YourPrice > highEdge:
			suggested = roundToTenth(highEdge)
			reason = fmt.Sprintf("Decrease to upper band (p%d)", highP)
		default:
			suggested = in.YourPrice
			reason = fmt.Sprintf("Currently within target band (p%d-p%d)", lowP, highP)
		}

	case CustomParams:
		suggested = roundToTenth(in.Market.Median * (1 + p.DeltaPct/100))
		sign := ""
		if p.DeltaPct > 0 {
			sign = "+"
		}
		reason = fmt.Sprintf("Custom delta: %s%g%% from median", sign, p.DeltaPct)
	}

	// Dead-band: suppress cosmetically trivial price edits.
	if suggested != in.YourPrice && math.Abs(suggested-in.YourPrice) < priceStep {
		suggested = in.YourPrice
		reason = "No change recommended (difference < $0.10)"
	}

	return Suggestion{
		Suggested:    suggested,
		Reason:       reason,
		ExpectedRank: RankInLadder(suggested, in.Ladder),
		Guardrail:    guardrailFor(in, now),
	}, nil
}

func guardrailFor(in SuggestionInput, now time.Time) Guardrail {
	if in.MappingConfidence != nil {
		recency := 0.0
		for _, obs := range in.Ladder {
			if h := now.Sub(obs.LastSeen).Hours(); h > recency {
				recency = h
			}
		}
		if ConfidenceScore(in.Market.Count, recency, *in.MappingConfidence) < lowConfidence {
			return GuardrailLowConfidence
		}
	}
	for _, obs := range in.Ladder {
		if now.Sub(obs.LastSeen) > staleAfter {
			return GuardrailStale
		}
	}
	return GuardrailOK
}

// RankInLadder returns the 1-based rank a probe price would hold in the
// ladder. Equal-priced competitors do not push the probe down: rank is the
// count of strictly cheaper entries plus one.
func RankInLadder(price float64, ladder []Observation) int {
	rank := 1
	for _, obs := range ladder {
		if obs.Price < price {
			rank++
		}
	}
	return rank
}

func sortedPrices(ladder []Observation) []float64 {
	prices := make([]float64, len(ladder))
	for i, obs := range ladder {
		prices[i] = obs.Price
	}
	sort.Float64s(prices)
	return prices
}

func bandIndex(n int, pct float64) int {
	idx := int(math.Floor(float64(n) * pct))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func roundToTenth(price float64) float64 {
	return math.Round(price*10) / 10
}
