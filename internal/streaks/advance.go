package streaks

import (
	"math"
	"time"
)

// Advance computes the next consecutive-day counter value for a log submitted
// at now. Calendar days are evaluated in the user's timezone: a repeat log on
// the same local day holds the counter, the next local day increments it, and
// any larger gap (or a clock moving backwards) resets it to 1.
func Advance(lastLogAt *time.Time, streak int, now time.Time, loc *time.Location) int {
	if lastLogAt == nil {
		return 1
	}

	today := localMidnightUTC(now, loc)
	last := localMidnightUTC(*lastLogAt, loc)
	if today.Equal(last) {
		return streak
	}

	// Both local dates are reinterpreted as UTC midnights before subtracting,
	// so the diff is whole days regardless of the zone's UTC offset.
	diffDays := int(math.Round(today.Sub(last).Hours() / 24))
	if diffDays == 1 {
		return streak + 1
	}
	return 1
}

func localMidnightUTC(instant time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	year, month, day := instant.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
