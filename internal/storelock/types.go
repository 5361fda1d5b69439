package storelock

import (
	"errors"
	"time"
)

// ErrLocked is returned when another live process holds the store lease
var ErrLocked = errors.New("store is locked by another process")

// Lease is the on-disk record of the current holder
type Lease struct {
	PID     int       `json:"pid"`
	Command string    `json:"command"`
	SinceTS time.Time `json:"since_ts"`
}

// Age returns how long ago the lease was taken or last refreshed
func (l Lease) Age(now time.Time) time.Duration {
	return now.Sub(l.SinceTS)
}
