package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/budradar/budradar/services/entitlements-service/internal/swaps"
)

type createSwapRequest struct {
	OrgID       string `json:"org_id"`
	FromStoreID string `json:"from_store_id"`
	ToStoreID   string `json:"to_store_id"`
}

// CreateSwap records a store swap against the org's monthly quota. The swap
// stays pending until the next data refresh. Returns 409 when the quota is
// already spent, including when two requests race for the last slot.
func (h *Handler) CreateSwap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.OrgID = strings.TrimSpace(req.OrgID)
	if req.OrgID == "" {
		req.OrgID = strings.TrimSpace(r.Header.Get("X-Org-Id"))
	}
	req.FromStoreID = strings.TrimSpace(req.FromStoreID)
	req.ToStoreID = strings.TrimSpace(req.ToStoreID)

	swap, err := h.swapSvc.Record(r.Context(), req.OrgID, req.FromStoreID, req.ToStoreID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, swaps.ErrInvalidRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, swaps.ErrQuotaExhausted):
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": "swap quota exhausted for this billing month",
			})
		default:
			h.logger.Error("swap recording failed", "org_id", req.OrgID, "error", err)
			http.Error(w, "failed to record swap", http.StatusInternalServerError)
		}
		return
	}

	h.cache.Invalidate(r.Context(), orgCacheKey(req.OrgID))
	writeJSON(w, http.StatusCreated, map[string]any{
		"swap_id":       swap.ID,
		"org_id":        swap.OrgID,
		"from_store_id": swap.FromStoreID,
		"to_store_id":   swap.ToStoreID,
		"status":        swap.Status,
		"requested_at":  swap.RequestedAt.Format(time.RFC3339),
		"activate_at":   swap.ActivateAt.Format(time.RFC3339),
	})
}

// ListSwaps returns the org's swap history, newest first.
func (h *Handler) ListSwaps(w http.ResponseWriter, r *http.Request) {
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

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := h.repo.ListSwaps(r.Context(), orgID, limit)
	if err != nil {
		http.Error(w, "failed to list swaps", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(list))
	for _, s := range list {
		item := map[string]any{
			"swap_id":       s.ID,
			"from_store_id": s.FromStoreID,
			"to_store_id":   s.ToStoreID,
			"status":        s.Status,
			"requested_at":  s.RequestedAt.UTC().Format(time.RFC3339),
			"activate_at":   s.ActivateAt.UTC().Format(time.RFC3339),
		}
		if s.ActivatedAt != nil {
			item["activated_at"] = s.ActivatedAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"org_id": orgID,
		"swaps":  items,
	})
}
