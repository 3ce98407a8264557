package usecase

import "time"

// Clock supplies the current time. Throttling and code expiry are
// computed against it, so tests inject their own.
type Clock func() time.Time

func orSystemClock(clock Clock) Clock {
	if clock == nil {
		return time.Now
	}
	return clock
}
