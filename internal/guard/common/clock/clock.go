// Package clock abstracts wall-clock access so schedule and rule evaluation
// can be tested against fixed instants.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

// MockClock returns a fixed, manually advanced time.
type MockClock struct {
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	return c.CurrentTime
}

// Advance moves the mock clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}
