package catalog

import (
	"errors"
	"testing"
)

func TestPlanByID(t *testing.T) {
	p, err := PlanByID("provincial")
	if err != nil {
		t.Fatalf("PlanByID failed: %v", err)
	}
	if p.Swaps != 20 {
		t.Fatalf("expected 20 swaps, got %d", p.Swaps)
	}

	_, err = PlanByID("gold")
	if !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestAddonByID(t *testing.T) {
	a, ok := AddonByID("swaps_10")
	if !ok {
		t.Fatalf("expected swaps_10 in catalog")
	}
	if a.Swaps != 10 {
		t.Fatalf("expected +10 swaps, got %d", a.Swaps)
	}

	if _, ok := AddonByID("jetpack"); ok {
		t.Fatalf("expected jetpack to be unknown")
	}
}

func TestCatalogCopiesAreIsolated(t *testing.T) {
	ps := Plans()
	ps[0].Stores = 12345
	again, err := PlanByID(ps[0].ID)
	if err != nil {
		t.Fatalf("PlanByID failed: %v", err)
	}
	if again.Stores == 12345 {
		t.Fatalf("catalog mutated through returned slice")
	}
}
