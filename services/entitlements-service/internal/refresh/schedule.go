package refresh

import (
	"sort"
	"time"
)

// Schedule is the product's data-refresh timetable. Swaps requested between
// refreshes activate at the next boundary, never immediately.
type Schedule struct {
	// HoursUTC are the refresh hours in UTC, ascending. Defaults to the
	// product's twice-daily cycle.
	HoursUTC []int
}

func DefaultSchedule() Schedule {
	return Schedule{HoursUTC: []int{6, 18}}
}

// Next returns the first refresh boundary strictly after now.
func (s Schedule) Next(now time.Time) time.Time {
	hours := s.HoursUTC
	if len(hours) == 0 {
		hours = []int{6, 18}
	}
	hours = append([]int(nil), hours...)
	sort.Ints(hours)

	now = now.UTC()
	for _, h := range hours {
		boundary := time.Date(now.Year(), now.Month(), now.Day(), h, 0, 0, 0, time.UTC)
		if boundary.After(now) {
			return boundary
		}
	}
	// Past today's last boundary: roll to tomorrow's first.
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), hours[0], 0, 0, 0, time.UTC)
}
