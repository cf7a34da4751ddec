package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/budradar/budradar/services/entitlements-service/internal/refresh"
	"github.com/budradar/budradar/services/entitlements-service/internal/storage"
	"github.com/budradar/budradar/services/entitlements-service/internal/swaps"
)

// quotaLedger stands in for the pg-backed ledger: it reports a fixed
// subscription and either accepts or rejects the quota consumption.
type quotaLedger struct {
	plan  string
	found bool
	full  bool
	saved []storage.Swap
}

func (l *quotaLedger) ActiveSubscription(_ context.Context, _ string) (string, []string, bool, error) {
	return l.plan, nil, l.found, nil
}

func (l *quotaLedger) RecordSwap(_ context.Context, swap storage.Swap, _ time.Time, _ int, _ []byte) error {
	if l.full {
		return swaps.ErrQuotaExhausted
	}
	l.saved = append(l.saved, swap)
	return nil
}

func newSwapHandler(ledger swaps.Ledger) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := swaps.NewService(ledger, refresh.DefaultSchedule(), logger)
	return New(nil, nil, svc, nil, logger, Config{})
}

func postSwap(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/swaps", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateSwap(rr, req)
	return rr
}

func TestCreateSwapQuotaExhausted(t *testing.T) {
	h := newSwapHandler(&quotaLedger{plan: "pro", found: true, full: true})

	rr := postSwap(t, h, `{"org_id":"org-1","from_store_id":"store-a","to_store_id":"store-b"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expected error message in 409 body")
	}
}

func TestCreateSwapWithoutSubscriptionIsConflict(t *testing.T) {
	// No subscription means zero quota, same outcome as a spent one.
	h := newSwapHandler(&quotaLedger{found: false})

	rr := postSwap(t, h, `{"org_id":"org-1","from_store_id":"store-a","to_store_id":"store-b"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateSwapSuccess(t *testing.T) {
	ledger := &quotaLedger{plan: "pro", found: true}
	h := newSwapHandler(ledger)

	rr := postSwap(t, h, `{"org_id":"org-1","from_store_id":"store-a","to_store_id":"store-b"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		SwapID     string `json:"swap_id"`
		Status     string `json:"status"`
		ActivateAt string `json:"activate_at"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SwapID == "" {
		t.Fatal("expected swap_id in response")
	}
	if resp.Status != storage.SwapStatusPending {
		t.Fatalf("status = %q, want %q", resp.Status, storage.SwapStatusPending)
	}
	if _, err := time.Parse(time.RFC3339, resp.ActivateAt); err != nil {
		t.Fatalf("activate_at not RFC3339: %v", err)
	}
	if len(ledger.saved) != 1 {
		t.Fatalf("recorded swaps = %d, want 1", len(ledger.saved))
	}
}

func TestCreateSwapInvalidInput(t *testing.T) {
	h := newSwapHandler(&quotaLedger{plan: "pro", found: true})

	rr := postSwap(t, h, `{"org_id":"org-1","from_store_id":"store-a","to_store_id":"store-a"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rr.Code, rr.Body.String())
	}
}
