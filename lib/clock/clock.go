// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time operations for testability. Production
// code injects Real(); tests inject Fake() with deterministic time
// control. Every production function that calls time.Now or time.After
// should accept a Clock parameter (or be a method on a struct with a
// Clock field) instead of calling the time package directly.
//
// Strix uses the clock in two places: the recreate confirmation
// window (wall-clock comparison against a persisted timestamp) and
// the /sync retry backoff.
package clock

import "time"

// Clock provides the current time and timer channels.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. Equivalent to time.After. If d <= 0, the
	// channel receives immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
