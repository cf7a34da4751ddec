package market

import (
	"testing"

	"github.com/budradar/budradar/services/pricing-service/internal/coach"
)

func obs(prices ...float64) []coach.Observation {
	ladder := make([]coach.Observation, len(prices))
	for i, p := range prices {
		ladder[i] = coach.Observation{StoreID: "s", Price: p}
	}
	return ladder
}

func TestStats_Empty(t *testing.T) {
	s := Stats(nil)
	if s.Count != 0 {
		t.Fatalf("expected count 0, got %d", s.Count)
	}
}

func TestStats_Unsorted(t *testing.T) {
	s := Stats(obs(28, 20, 32, 24, 26, 22, 30, 25))
	if s.Count != 8 {
		t.Fatalf("expected count 8, got %d", s.Count)
	}
	if s.Min != 20 {
		t.Fatalf("expected min 20, got %v", s.Min)
	}
	// Sorted: 20 22 24 25 26 28 30 32; median idx 4 -> 26, p90 idx 7 -> 32.
	if s.Median != 26 {
		t.Fatalf("expected median 26, got %v", s.Median)
	}
	if s.P90 != 32 {
		t.Fatalf("expected p90 32, got %v", s.P90)
	}
}

func TestStats_Ordering(t *testing.T) {
	s := Stats(obs(31.5, 19.99, 24.5, 27.3, 22.1))
	if s.Min > s.Median || s.Median > s.P90 {
		t.Fatalf("invariant min <= median <= p90 violated: %+v", s)
	}
}

func TestStats_SingleEntry(t *testing.T) {
	s := Stats(obs(24.5))
	if s.Min != 24.5 || s.Median != 24.5 || s.P90 != 24.5 || s.Count != 1 {
		t.Fatalf("unexpected stats for single entry: %+v", s)
	}
}
