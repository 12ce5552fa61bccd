package clock

import "time"

// Clock abstracts time so workflow services can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// Today truncates to a UTC calendar date.
func Today(c Clock) time.Time {
	now := c.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
