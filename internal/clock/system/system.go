// Package system provides the wall-clock implementation used by the pipeline.
package system

import "time"

// Clock reads the system time.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
