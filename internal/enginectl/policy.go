package enginectl

import (
	"sync"
	"time"
)

// DefaultIdleThreshold is how long the server may sit without an inference
// call before the next call recycles it. Long-idle instances have been
// observed to come back unresponsive or with stale weights, so recycling
// up front beats waiting for a failed call.
const DefaultIdleThreshold = 90 * time.Second

// ActivityState tracks the last successful inference dispatch. One
// instance is shared by every call going through the same client; it is
// passed in explicitly rather than reached through a global.
type ActivityState struct {
	mu        sync.Mutex
	lastTime  time.Time
	lastModel string
}

// Record notes that an inference call for the given model entered
// streaming. Called once per call, not per frame.
func (a *ActivityState) Record(model string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastTime = time.Now()
	a.lastModel = model
}

// Snapshot returns the last inference time (zero if none yet) and model.
func (a *ActivityState) Snapshot() (time.Time, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastTime, a.lastModel
}

// ShouldRestart decides whether the server should be recycled before the
// next inference call: true when the recorded activity is older than
// idleThreshold, or when the requested model differs from the last one
// used. With no recorded activity it always returns false; a first call
// never forces a restart by itself. Pure decision, no I/O.
func ShouldRestart(requestedModel string, lastTime time.Time, lastModel string, idleThreshold time.Duration, now time.Time) bool {
	if !lastTime.IsZero() && now.Sub(lastTime) >= idleThreshold {
		return true
	}
	if lastModel != "" && lastModel != requestedModel {
		return true
	}
	return false
}

// ShouldRestart applies the restart policy against the live clock.
func (a *ActivityState) ShouldRestart(requestedModel string, idleThreshold time.Duration) bool {
	lastTime, lastModel := a.Snapshot()
	return ShouldRestart(requestedModel, lastTime, lastModel, idleThreshold, time.Now())
}
