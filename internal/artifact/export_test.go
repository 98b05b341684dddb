package artifact

import "time"

// SetClock replaces the package clock and returns a restore func.
func SetClock(fn func() time.Time) func() {
	prev := timeNow
	timeNow = fn
	return func() { timeNow = prev }
}
