package clock

import "time"

// Clock abstracts time so hold expiry and the sweeper can be tested without
// sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now in UTC.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a clock pinned to a settable instant, for tests.
type Fixed struct {
	now time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t.UTC()}
}

func (f *Fixed) Now() time.Time {
	return f.now
}

// Advance moves the fixed clock forward.
func (f *Fixed) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}
