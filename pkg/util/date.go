package util

import (
	"time"
)

// DayBoundary returns the UTC midnight preceding t. Daily risk counters
// reset at this boundary.
func DayBoundary(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
