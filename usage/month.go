package usage

import "time"

// BillingMonthStart returns the start of the billing month containing now.
// With an anchor (the subscription's current period start) it is the most
// recent monthly anniversary of the anchor at or before now; without one it
// is the first instant of now's calendar month in UTC.
//
// Anniversaries on days a month lacks clamp to that month's last day, so a
// period anchored on Jan 31 rolls over on Feb 28 (or 29).
func BillingMonthStart(now time.Time, anchor *time.Time) time.Time {
	now = now.UTC()
	if anchor == nil || anchor.IsZero() {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	a := anchor.UTC()
	if a.After(now) {
		// Anchor in the future: fall back to the calendar month.
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	y, m := now.Year(), now.Month()
	start := anniversary(a, y, m)
	if start.After(now) {
		if m == time.January {
			y, m = y-1, time.December
		} else {
			m--
		}
		start = anniversary(a, y, m)
	}
	return start
}

func anniversary(anchor time.Time, year int, month time.Month) time.Time {
	day := min(anchor.Day(), daysIn(year, month))
	return time.Date(year, month, day, anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
