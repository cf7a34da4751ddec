package refresh

import (
	"testing"
	"time"
)

func TestNextBetweenBoundaries(t *testing.T) {
	s := DefaultSchedule()
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	got := s.Next(now)
	want := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextBeforeFirstBoundary(t *testing.T) {
	s := DefaultSchedule()
	now := time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)
	got := s.Next(now)
	want := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextRollsToTomorrow(t *testing.T) {
	s := DefaultSchedule()
	now := time.Date(2026, 3, 14, 21, 15, 0, 0, time.UTC)
	got := s.Next(now)
	want := time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextExactlyAtBoundaryIsStrictlyAfter(t *testing.T) {
	s := DefaultSchedule()
	now := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	got := s.Next(now)
	want := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextNonUTCInput(t *testing.T) {
	s := DefaultSchedule()
	est := time.FixedZone("EST", -5*60*60)
	// 03:00 EST == 08:00 UTC, so the next boundary is 18:00 UTC.
	now := time.Date(2026, 3, 14, 3, 0, 0, 0, est)
	got := s.Next(now)
	want := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}
