package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/budradar/budradar/services/entitlements-service/internal/catalog"
	"github.com/budradar/budradar/services/entitlements-service/internal/entitlements"
	"github.com/budradar/budradar/services/entitlements-service/internal/storage"
)

// ComputeEntitlements resolves a (plan, addons) pair from the catalog without
// touching any subscription state. Used by pricing pages and the admin UI.
func (h *Handler) ComputeEntitlements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plan := strings.TrimSpace(strings.ToLower(r.URL.Query().Get("plan")))
	if plan == "" {
		http.Error(w, "plan is required", http.StatusBadRequest)
		return
	}
	var addons []string
	if raw := strings.TrimSpace(r.URL.Query().Get("addons")); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(strings.ToLower(a)); a != "" {
				addons = append(addons, a)
			}
		}
	}

	ent, err := entitlements.Compute(plan, addons)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownPlan) {
			http.Error(w, "unknown plan", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to compute entitlements", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

type orgEntitlementsResponse struct {
	OrgID        string                    `json:"org_id"`
	Status       string                    `json:"status"`
	Addons       []string                  `json:"addons"`
	Entitlements entitlements.Entitlements `json:"entitlements"`
	Usage        orgUsage                  `json:"usage"`
	Remaining    orgRemaining              `json:"remaining"`
	BillingMonth string                    `json:"billing_month"`
}

type orgUsage struct {
	StoresUsed int `json:"stores_used"`
	SeatsUsed  int `json:"seats_used"`
	AlertsUsed int `json:"alerts_used"`
	SwapsUsed  int `json:"swaps_used"`
}

type orgRemaining struct {
	StoreSlots     int  `json:"store_slots"`
	Swaps          int  `json:"swaps"`
	CanSelectStore bool `json:"can_select_store"`
	CanSwap        bool `json:"can_swap"`
}

// OrgEntitlements returns the org's live entitlement state: computed limits
// plus this billing month's usage and the derived headroom. Reads go through
// a short-TTL cache; writes (webhooks, swaps) invalidate it.
func (h *Handler) OrgEntitlements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		orgID = strings.TrimSpace(r.Header.Get("X-Org-Id"))
	}
	if orgID == "" {
		http.Error(w, "org_id is required", http.StatusBadRequest)
		return
	}

	var cached orgEntitlementsResponse
	if h.cache.GetJSON(r.Context(), orgCacheKey(orgID), &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	// Orgs without a subscription, or with one in a non-entitled state, get
	// the zero entitlements rather than a 404. Absence of a plan is just the
	// zero plan; callers only have to reason about limits.
	var ent entitlements.Entitlements
	status := "none"
	addons := []string{}
	sub, err := h.repo.GetSubscription(r.Context(), orgID)
	switch {
	case err == nil:
		status = sub.Status
		if sub.Addons != nil {
			addons = sub.Addons
		}
		if status == "active" || status == "trialing" {
			ent, err = entitlements.Compute(sub.Plan, sub.Addons)
			if err != nil {
				h.logger.Error("subscription references unknown plan", "org_id", orgID, "plan", sub.Plan)
				http.Error(w, "failed to compute entitlements", http.StatusInternalServerError)
				return
			}
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		http.Error(w, "failed to load subscription", http.StatusInternalServerError)
		return
	}

	month := storage.MonthOf(time.Now().UTC())
	usage, err := h.repo.GetUsage(r.Context(), orgID, month)
	if err != nil {
		http.Error(w, "failed to load usage", http.StatusInternalServerError)
		return
	}

	resp := orgEntitlementsResponse{
		OrgID:        orgID,
		Status:       status,
		Addons:       addons,
		Entitlements: ent,
		Usage: orgUsage{
			StoresUsed: usage.StoresUsed,
			SeatsUsed:  usage.SeatsUsed,
			AlertsUsed: usage.AlertsUsed,
			SwapsUsed:  usage.SwapsUsed,
		},
		Remaining: orgRemaining{
			StoreSlots:     entitlements.RemainingSlots(usage.StoresUsed, ent),
			Swaps:          max(ent.MonthlySwaps-usage.SwapsUsed, 0),
			CanSelectStore: entitlements.CanSelectStore(usage.StoresUsed, ent),
			CanSwap:        entitlements.CanSwap(usage.SwapsUsed, ent),
		},
		BillingMonth: month.Format("2006-01"),
	}
	h.cache.SetJSON(r.Context(), orgCacheKey(orgID), resp)
	writeJSON(w, http.StatusOK, resp)
}

// Catalog lists the purchasable plans and add-ons.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plans":  catalog.Plans(),
		"addons": catalog.Addons(),
	})
}
