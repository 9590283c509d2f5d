// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package timelock decides when a validated transfer may be released.
// It holds no state of its own; callers supply the clock reading.
package timelock

import (
	"time"

	"github.com/luxfi/bridge/config"
)

// UnlockTime computes the earliest release time for a transfer created at
// [now]. High-value transfers always wait at least the minimum timelock,
// even when the caller requested no delay. An explicitly requested delay is
// clamped to the configured [MinTimelock, MaxTimelock] bounds.
func UnlockTime(now time.Time, requestedDelay time.Duration, highValue bool, p config.Params) time.Time {
	delay := requestedDelay
	if delay > 0 || highValue {
		if delay < p.MinTimelock {
			delay = p.MinTimelock
		}
		if delay > p.MaxTimelock {
			delay = p.MaxTimelock
		}
	}
	return now.Add(delay)
}

// CanRelease reports whether a transfer with the given unlock time may be
// executed at [now].
func CanRelease(unlockTime, now time.Time) bool {
	return !now.Before(unlockTime)
}

// Remaining returns how long until release is permitted, or zero if it
// already is.
func Remaining(unlockTime, now time.Time) time.Duration {
	if CanRelease(unlockTime, now) {
		return 0
	}
	return unlockTime.Sub(now)
}
