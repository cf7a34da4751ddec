package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newCatalogOnlyHandler() *Handler {
	// ComputeEntitlements and Catalog never touch storage or the cache.
	return New(nil, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})
}

func TestComputeEntitlementsEndpoint(t *testing.T) {
	h := newCatalogOnlyHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entitlements?plan=pro&addons=stores_5,api", nil)
	rr := httptest.NewRecorder()
	h.ComputeEntitlements(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Plan      string `json:"plan"`
		MaxStores int    `json:"max_stores"`
		HasAPI    bool   `json:"has_api"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Plan != "pro" {
		t.Fatalf("plan = %q, want pro", resp.Plan)
	}
	if resp.MaxStores != 30 {
		t.Fatalf("max_stores = %d, want 30", resp.MaxStores)
	}
	if !resp.HasAPI {
		t.Fatal("expected has_api after api addon")
	}
}

func TestComputeEntitlementsUnknownPlan(t *testing.T) {
	h := newCatalogOnlyHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entitlements?plan=platinum", nil)
	rr := httptest.NewRecorder()
	h.ComputeEntitlements(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestComputeEntitlementsMissingPlan(t *testing.T) {
	h := newCatalogOnlyHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entitlements", nil)
	rr := httptest.NewRecorder()
	h.ComputeEntitlements(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestCatalogEndpoint(t *testing.T) {
	h := newCatalogOnlyHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	rr := httptest.NewRecorder()
	h.Catalog(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp struct {
		Plans  []json.RawMessage `json:"plans"`
		Addons []json.RawMessage `json:"addons"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Plans) == 0 || len(resp.Addons) == 0 {
		t.Fatalf("expected non-empty catalog, got %d plans %d addons", len(resp.Plans), len(resp.Addons))
	}
}

func TestAddonsFromMetadata(t *testing.T) {
	got := addonsFromMetadata(" Stores_5 ,, API ")
	if len(got) != 2 || got[0] != "stores_5" || got[1] != "api" {
		t.Fatalf("addonsFromMetadata = %v", got)
	}
	if got := addonsFromMetadata(""); got != nil {
		t.Fatalf("expected nil for empty metadata, got %v", got)
	}
}

func TestWithQueryParam(t *testing.T) {
	if got := withQueryParam("https://x.test/done", "state", "a b"); got != "https://x.test/done?state=a+b" {
		t.Fatalf("withQueryParam = %q", got)
	}
	if got := withQueryParam("https://x.test/done?y=1", "state", "tok"); got != "https://x.test/done?y=1&state=tok" {
		t.Fatalf("withQueryParam = %q", got)
	}
}

func TestNewReturnToken(t *testing.T) {
	a := newReturnToken()
	b := newReturnToken()
	if a == "" || a == b {
		t.Fatalf("expected unique non-empty tokens, got %q and %q", a, b)
	}
	if strings.ContainsAny(a, "+/=") {
		t.Fatalf("token %q is not URL-safe", a)
	}
}
