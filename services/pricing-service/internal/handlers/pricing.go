package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/budradar/budradar/services/pricing-service/internal/coach"
	"github.com/budradar/budradar/services/pricing-service/internal/market"
)

type Handler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

type suggestRequest struct {
	YourPrice         float64             `json:"your_price"`
	Market            *coach.MarketStats  `json:"market,omitempty"`
	Ladder            []coach.Observation `json:"ladder"`
	Strategy          string              `json:"strategy"`
	Params            *suggestParams      `json:"params,omitempty"`
	MappingConfidence *float64            `json:"mapping_confidence,omitempty"`
}

// suggestParams is the loose wire shape; buildParams narrows it to the typed
// per-strategy params and rejects fields that don't belong to the strategy.
type suggestParams struct {
	BelowMinPct *float64    `json:"below_min_pct,omitempty"`
	Band        *[2]float64 `json:"band,omitempty"`
	DeltaPct    *float64    `json:"delta_pct,omitempty"`
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	strategy := coach.Strategy(req.Strategy)
	params, err := buildParams(strategy, req.Params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats := market.Stats(req.Ladder)
	if req.Market != nil {
		stats = *req.Market
	}

	input := coach.SuggestionInput{
		YourPrice:         req.YourPrice,
		Market:            stats,
		Ladder:            req.Ladder,
		Strategy:          strategy,
		Params:            params,
		MappingConfidence: req.MappingConfidence,
	}

	suggestion, err := coach.SuggestPrice(input, time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("price suggestion computed",
		"strategy", req.Strategy,
		"ladder_size", len(req.Ladder),
		"guardrail", string(suggestion.Guardrail),
	)
	writeJSON(w, http.StatusOK, suggestion)
}

type scoresRequest struct {
	CoveragePct       float64 `json:"coverage_pct"`
	PromoRate         float64 `json:"promo_rate"`
	Arrivals          int     `json:"arrivals"`
	StoreCount        int     `json:"store_count"`
	RecencyHours      float64 `json:"recency_hours"`
	MappingConfidence float64 `json:"mapping_confidence"`
	YourPrice         float64 `json:"your_price"`
	Median            float64 `json:"median"`
}

type scoresResponse struct {
	Popularity  int       `json:"popularity"`
	Confidence  int       `json:"confidence"`
	GapToMedian coach.Gap `json:"gap_to_median"`
}

func (h *Handler) Scores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req scoresRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, scoresResponse{
		Popularity:  coach.PopularityScore(req.CoveragePct, req.PromoRate, req.Arrivals),
		Confidence:  coach.ConfidenceScore(req.StoreCount, req.RecencyHours, req.MappingConfidence),
		GapToMedian: coach.GapToMedian(req.YourPrice, req.Median),
	})
}

func buildParams(strategy coach.Strategy, raw *suggestParams) (coach.Params, error) {
	if raw == nil {
		return nil, nil
	}

	reject := func(field string) error {
		return &paramsError{field: field, strategy: string(strategy)}
	}

	switch strategy {
	case coach.StrategyMedian:
		if raw.BelowMinPct != nil {
			return nil, reject("below_min_pct")
		}
		if raw.Band != nil {
			return nil, reject("band")
		}
		if raw.DeltaPct != nil {
			return nil, reject("delta_pct")
		}
		return coach.MedianParams{}, nil
	case coach.StrategyWin:
		if raw.Band != nil {
			return nil, reject("band")
		}
		if raw.DeltaPct != nil {
			return nil, reject("delta_pct")
		}
		if raw.BelowMinPct == nil {
			return nil, nil
		}
		return coach.WinParams{BelowMinPct: *raw.BelowMinPct}, nil
	case coach.StrategyHold:
		if raw.BelowMinPct != nil {
			return nil, reject("below_min_pct")
		}
		if raw.DeltaPct != nil {
			return nil, reject("delta_pct")
		}
		if raw.Band == nil {
			return nil, nil
		}
		return coach.HoldParams{Band: *raw.Band}, nil
	case coach.StrategyCustom:
		if raw.BelowMinPct != nil {
			return nil, reject("below_min_pct")
		}
		if raw.Band != nil {
			return nil, reject("band")
		}
		if raw.DeltaPct == nil {
			return nil, nil
		}
		return coach.CustomParams{DeltaPct: *raw.DeltaPct}, nil
	default:
		// Let SuggestionInput.Validate produce the unknown-strategy error.
		return nil, nil
	}
}

type paramsError struct {
	field    string
	strategy string
}

func (e *paramsError) Error() string {
	return "param " + e.field + " is not valid for strategy " + e.strategy
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
