package app

import "time"

// Clock abstracts wall-clock access so time-dependent logic is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
