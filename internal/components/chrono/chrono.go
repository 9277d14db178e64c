package chrono

import "time"

// API is the clock components should read the time from.
type API interface {
	Now() time.Time
}

// StandardImpl reads the system clock.
type StandardImpl struct{}

func (StandardImpl) Now() time.Time {
	return time.Now()
}

// FixedImpl always returns the same instant, for tests.
type FixedImpl struct {
	Time time.Time
}

func (f FixedImpl) Now() time.Time {
	return f.Time
}
