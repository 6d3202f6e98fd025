package licensing

import "time"

// Period is the half-open accounting window [Start, End)
type Period struct {
	Start time.Time `json:"period_start"`
	End   time.Time `json:"period_end"`
}

// Contains reports whether t falls inside the period
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// ClampAnchorDay forces a billing anchor day into [1, 31]
func ClampAnchorDay(day int) int {
	if day < 1 {
		return 1
	}
	if day > 31 {
		return 31
	}
	return day
}

// PeriodBounds returns the billing period containing now.
//
// Periods start at midnight UTC on the anchor day. In months shorter than the
// anchor day the period boundary falls on the month's last day, on both ends:
// anchor 31 yields Jan 31 -> Feb 28 -> Mar 31. start <= now < end always holds.
func PeriodBounds(anchorDay int, now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	day := ClampAnchorDay(anchorDay)

	start := anchorDate(now.Year(), now.Month(), day)
	if start.After(now) {
		start = anchorDate(now.Year(), now.Month()-1, day)
	}
	end := anchorDate(start.Year(), start.Month()+1, day)
	return start, end
}

// CurrentPeriod wraps PeriodBounds in a Period
func CurrentPeriod(anchorDay int, now time.Time) Period {
	start, end := PeriodBounds(anchorDay, now)
	return Period{Start: start, End: end}
}

// anchorDate returns midnight UTC on day of the given month, clamped to the
// month's last day. month may be out of range; it is normalized first.
func anchorDate(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
