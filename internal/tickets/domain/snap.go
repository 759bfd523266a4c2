package domain

import "time"

// snapGrid is the billing grid all ticket times are rounded to.
const snapGrid = 15 * time.Minute

// Snap rounds t to the nearest 15-minute boundary, ties rounding up.
// Every time-in/time-out write goes through this function so times from
// the SMS path and the manual form land on the same billing grid.
func Snap(t time.Time) time.Time {
	return t.Add(snapGrid / 2).Truncate(snapGrid)
}
