// Package globaltime is the single source of wall-clock time for the
// engine. Reports, audit records and recency scoring all read through
// it so tests can pin the clock.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// Freeze pins the clock to t and returns a function that restores the
// real clock. Tests that freeze the clock must not run in parallel.
func Freeze(t time.Time) func() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
	return func() {
		mu.Lock()
		defer mu.Unlock()
		nowFunc = time.Now
	}
}
