package engine

import "time"

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (local time when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}
