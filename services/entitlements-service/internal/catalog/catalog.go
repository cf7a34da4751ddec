package catalog

import (
	"errors"
	"fmt"
)

// ErrUnknownPlan marks a plan id that is not in the catalog. Unlike unknown
// add-ons, this is a data-integrity problem: subscriptions must always point
// at a real plan.
var ErrUnknownPlan = errors.New("unknown plan")

// Plan is one subscription tier. Catalog entries are immutable reference
// data; limits are the plan's base ceilings before add-ons.
type Plan struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	PriceMonthly int      `json:"price_monthly"`
	Stores       int      `json:"stores"`
	Seats        int      `json:"seats"`
	Alerts       int      `json:"alerts"`
	Swaps        int      `json:"swaps"`
	Features     []string `json:"features,omitempty"`
}

// Feature flags that add-ons can switch on.
type Feature string

const (
	FeatureAPI       Feature = "api"
	FeatureWeeklyPDF Feature = "weekly_pdf"
	FeatureArchive   Feature = "archive"
)

// Addon is a purchasable increment on top of a plan. Every effect is either
// an additive bump or a flag set, so folding add-ons commutes.
type Addon struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PriceMonthly int     `json:"price_monthly"`
	Description  string  `json:"description"`
	Stores       int     `json:"stores,omitempty"`
	Seats        int     `json:"seats,omitempty"`
	Swaps        int     `json:"swaps,omitempty"`
	Feature      Feature `json:"feature,omitempty"`
}

// The tier ladder mirrors the product's published pricing page. "Unlimited"
// tiers use 9999 rather than a sentinel zero so quota predicates stay simple
// comparisons.
var plans = []Plan{
	{
		ID:           "lite",
		Name:         "Lite",
		PriceMonthly: 199,
		Stores:       5,
		Seats:        2,
		Alerts:       5,
		Swaps:        0,
		Features:     []string{"2x Daily Refresh", "Basic Analytics", "Email Alerts", "30-day History"},
	},
	{
		ID:           "starter",
		Name:         "Starter",
		PriceMonthly: 299,
		Stores:       10,
		Seats:        3,
		Alerts:       10,
		Swaps:        0,
		Features:     []string{"2x Daily Refresh", "Advanced Analytics", "Email & SMS Alerts", "90-day History", "CSV Export"},
	},
	{
		ID:           "pro",
		Name:         "Pro",
		PriceMonthly: 599,
		Stores:       25,
		Seats:        5,
		Alerts:       25,
		Swaps:        5,
		Features:     []string{"2x Daily Refresh", "Advanced Analytics", "Priority Alerts", "1-year History", "API Access", "Custom Reports"},
	},
	{
		ID:           "provincial",
		Name:         "Provincial",
		PriceMonthly: 1299,
		Stores:       9999,
		Seats:        10,
		Alerts:       100,
		Swaps:        20,
		Features:     []string{"All BC Stores", "2x Daily Refresh", "Enterprise Analytics", "Priority Support", "Unlimited History", "API Access", "White Label Reports"},
	},
	{
		ID:           "enterprise",
		Name:         "Enterprise",
		PriceMonthly: 0,
		Stores:       9999,
		Seats:        9999,
		Alerts:       9999,
		Swaps:        9999,
		Features:     []string{"Custom Everything", "Contact Sales"},
	},
}

var addons = []Addon{
	{ID: "stores_5", Name: "+5 Stores", PriceMonthly: 49, Description: "Add 5 additional tracked stores", Stores: 5},
	{ID: "swaps_10", Name: "+10 Monthly Swaps", PriceMonthly: 29, Description: "Add 10 monthly store swaps", Swaps: 10},
	{ID: "seat", Name: "Extra Seat", PriceMonthly: 10, Description: "Add one team member", Seats: 1},
	{ID: "pdf", Name: "Weekly PDF", PriceMonthly: 49, Description: "Weekly market summary email", Feature: FeatureWeeklyPDF},
	{ID: "archive", Name: "12-mo Archive", PriceMonthly: 79, Description: "Extended historical data", Feature: FeatureArchive},
	{ID: "api", Name: "API Access", PriceMonthly: 199, Description: "Full API access", Feature: FeatureAPI},
}

// PlanByID looks up a plan in the catalog.
func PlanByID(id string) (Plan, error) {
	for _, p := range plans {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
}

// AddonByID looks up an add-on. The second return is false for ids not in
// the catalog; callers folding entitlements skip those silently to stay
// forward-compatible with catalog growth.
func AddonByID(id string) (Addon, bool) {
	for _, a := range addons {
		if a.ID == id {
			return a, true
		}
	}
	return Addon{}, false
}

// Plans returns the catalog in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// Addons returns the add-on catalog in display order.
func Addons() []Addon {
	out := make([]Addon, len(addons))
	copy(out, addons)
	return out
}
