package entitlements

import (
	"github.com/budradar/budradar/services/entitlements-service/internal/catalog"
)

// Entitlements is the computed ceiling set for one (plan, add-ons) pair.
// It is a pure projection: recomputed on every read, never stored or edited
// directly. Other services rely on these fields to gate behavior, so keep
// the shape small and stable.
type Entitlements struct {
	Plan         string `json:"plan"`
	MaxStores    int    `json:"max_stores"`
	MaxSeats     int    `json:"max_seats"`
	MaxAlerts    int    `json:"max_alerts"`
	MonthlySwaps int    `json:"monthly_swaps"`
	HasAPI       bool   `json:"has_api"`
	HasWeeklyPDF bool   `json:"has_weekly_pdf"`
	HasArchive   bool   `json:"has_archive"`
}

// Compute folds a plan's base limits with zero or more add-ons. Every add-on
// effect is an additive bump or a flag set, so the fold commutes: order of
// addonIDs never changes the result. Unknown add-on ids are skipped.
// An unknown plan id returns catalog.ErrUnknownPlan.
func Compute(planID string, addonIDs []string) (Entitlements, error) {
	plan, err := catalog.PlanByID(planID)
	if err != nil {
		return Entitlements{}, err
	}

	ent := Entitlements{
		Plan:         plan.ID,
		MaxStores:    plan.Stores,
		MaxSeats:     plan.Seats,
		MaxAlerts:    plan.Alerts,
		MonthlySwaps: plan.Swaps,
	}

	for _, id := range addonIDs {
		addon, ok := catalog.AddonByID(id)
		if !ok {
			continue
		}
		ent.MaxStores += addon.Stores
		ent.MaxSeats += addon.Seats
		ent.MonthlySwaps += addon.Swaps
		switch addon.Feature {
		case catalog.FeatureAPI:
			ent.HasAPI = true
		case catalog.FeatureWeeklyPDF:
			ent.HasWeeklyPDF = true
		case catalog.FeatureArchive:
			ent.HasArchive = true
		}
	}

	return ent, nil
}

// CanSelectStore reports whether one more store fits under the ceiling.
func CanSelectStore(currentCount int, ent Entitlements) bool {
	return currentCount < ent.MaxStores
}

// RemainingSlots is the number of store slots still open, never negative.
func RemainingSlots(currentCount int, ent Entitlements) int {
	if remaining := ent.MaxStores - currentCount; remaining > 0 {
		return remaining
	}
	return 0
}

// CanSwap reports whether the org has swap quota left this billing month.
func CanSwap(swapsUsedThisMonth int, ent Entitlements) bool {
	return swapsUsedThisMonth < ent.MonthlySwaps
}
