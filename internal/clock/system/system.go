// Package system provides a real clock implementation.
package system

import "time"

// Clock implements contracts.Clock using time.Now.
// It returns local time because the SAM.gov date-range defaults are
// calendar days in the operator's timezone.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time.
func (Clock) Now() time.Time {
	return time.Now()
}
