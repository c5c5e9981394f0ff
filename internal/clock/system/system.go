// Package system provides the wall clock used to stamp crawl events and time crawls.
package system

import "time"

// Clock satisfies crawler.Clock with the process wall clock, in UTC.
type Clock struct{}

// New returns a Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
