// Package session provides trading-session calendar helpers. All functions are
// pure: the trading region is expressed as a fixed hour offset from UTC and no
// timezone database lookup is involved.
package session

import (
	"fmt"
	"time"
)

// IsWithinSession reports whether now falls inside the [startHour, endHour)
// window in region-local time. Windows where startHour > endHour span midnight
// and cover [startHour, 24) plus [0, endHour).
func IsWithinSession(now time.Time, startHour, endHour, regionOffset int) bool {
	h := regionTime(now, regionOffset).Hour()
	if startHour > endHour {
		return h >= startHour || h < endHour
	}
	return h >= startHour && h < endHour
}

// DayKey returns the region-local calendar date for now, formatted YYYY-MM-DD.
// It is only compared for equality to detect day rollover.
func DayKey(now time.Time, regionOffset int) string {
	return regionTime(now, regionOffset).Format("2006-01-02")
}

// PastWeeklyCutoff reports whether now has reached the weekly flatten cutoff,
// i.e. the region-local time is at or past cutoffHour on cutoffDay, or any
// later point of the same region-local day.
func PastWeeklyCutoff(now time.Time, cutoffDay time.Weekday, cutoffHour, regionOffset int) bool {
	local := regionTime(now, regionOffset)
	return local.Weekday() == cutoffDay && local.Hour() >= cutoffHour
}

// ValidateWindow rejects hour bounds outside [0, 24]. A misconfigured window is
// a deployment error and should stop the instance at startup.
func ValidateWindow(startHour, endHour int) error {
	if startHour < 0 || startHour > 24 || endHour < 0 || endHour > 24 {
		return fmt.Errorf("session window hours out of range: start=%d end=%d", startHour, endHour)
	}
	return nil
}

func regionTime(now time.Time, offsetHours int) time.Time {
	return now.UTC().Add(time.Duration(offsetHours) * time.Hour)
}
