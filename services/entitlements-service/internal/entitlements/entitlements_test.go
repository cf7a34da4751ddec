package entitlements

import (
	"errors"
	"testing"

	"github.com/budradar/budradar/services/entitlements-service/internal/catalog"
)

func TestCompute_BasePlan(t *testing.T) {
	ent, err := Compute("pro", nil)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if ent.Plan != "pro" {
		t.Fatalf("expected plan pro, got %s", ent.Plan)
	}
	if ent.MaxStores != 25 || ent.MaxSeats != 5 || ent.MaxAlerts != 25 || ent.MonthlySwaps != 5 {
		t.Fatalf("unexpected base limits: %+v", ent)
	}
	if ent.HasAPI || ent.HasWeeklyPDF || ent.HasArchive {
		t.Fatalf("base plan must not set feature flags: %+v", ent)
	}
}

func TestCompute_AddonsFold(t *testing.T) {
	ent, err := Compute("pro", []string{"stores_5", "swaps_10", "seat", "api"})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if ent.MaxStores != 30 {
		t.Fatalf("expected 30 stores, got %d", ent.MaxStores)
	}
	if ent.MonthlySwaps != 15 {
		t.Fatalf("expected 15 swaps, got %d", ent.MonthlySwaps)
	}
	if ent.MaxSeats != 6 {
		t.Fatalf("expected 6 seats, got %d", ent.MaxSeats)
	}
	if !ent.HasAPI {
		t.Fatalf("expected has_api")
	}
}

func TestCompute_CommutativeInAddonOrder(t *testing.T) {
	forward, err := Compute("starter", []string{"stores_5", "seat", "pdf", "swaps_10"})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	backward, err := Compute("starter", []string{"swaps_10", "pdf", "seat", "stores_5"})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if forward != backward {
		t.Fatalf("fold is order-dependent: %+v vs %+v", forward, backward)
	}
}

func TestCompute_UnknownAddonIgnored(t *testing.T) {
	with, err := Compute("lite", []string{"hoverboard", "stores_5"})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	without, err := Compute("lite", []string{"stores_5"})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if with != without {
		t.Fatalf("unknown addon changed the result: %+v vs %+v", with, without)
	}
}

func TestCompute_UnknownPlan(t *testing.T) {
	_, err := Compute("platinum", nil)
	if !errors.Is(err, catalog.ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestQuotaPredicates(t *testing.T) {
	ent, err := Compute("pro", []string{"stores_5"})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	// pro (25) + stores_5 -> 30.
	if ent.MaxStores != 30 {
		t.Fatalf("expected 30 stores, got %d", ent.MaxStores)
	}
	if got := RemainingSlots(28, ent); got != 2 {
		t.Fatalf("expected 2 remaining, got %d", got)
	}
	if CanSelectStore(30, ent) {
		t.Fatalf("expected store selection blocked at the ceiling")
	}
	if !CanSelectStore(29, ent) {
		t.Fatalf("expected store selection allowed under the ceiling")
	}
	if got := RemainingSlots(40, ent); got != 0 {
		t.Fatalf("remaining slots must not go negative, got %d", got)
	}

	if CanSwap(5, ent) {
		t.Fatalf("expected no swap at 5/5")
	}
	if !CanSwap(4, ent) {
		t.Fatalf("expected swap allowed at 4/5")
	}
}
