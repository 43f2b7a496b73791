// Package impact accumulates the estimated environmental cost of model calls.
package impact

import (
	"sync"

	"cvmatch/internal/types"
)

// Observer is notified of every value added to a Tracker
type Observer interface {
	RecordImpact(energy, gwp float64)
}

// Tracker keeps running totals of energy and global warming potential.
// It is safe for concurrent use and its zero value is ready.
type Tracker struct {
	mu       sync.Mutex
	metrics  types.ImpactMetrics
	calls    int64
	observer Observer
}

// NewTracker returns an empty tracker. observer may be nil.
func NewTracker(observer Observer) *Tracker {
	return &Tracker{observer: observer}
}

// RecordCall adds one call's cost, GWP first as providers report it.
// A nil value leaves that total unchanged.
func (t *Tracker) RecordCall(gwp, energy *float64) {
	if t == nil {
		return
	}

	var e, g float64
	if energy != nil {
		e = *energy
	}
	if gwp != nil {
		g = *gwp
	}

	t.mu.Lock()
	t.metrics.EnergyUsage += e
	t.metrics.GWP += g
	t.calls++
	observer := t.observer
	t.mu.Unlock()

	if observer != nil && (e != 0 || g != 0) {
		observer.RecordImpact(e, g)
	}
}

// Metrics returns the current totals
func (t *Tracker) Metrics() types.ImpactMetrics {
	if t == nil {
		return types.ImpactMetrics{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metrics
}

// Calls returns how many calls were recorded since the last reset
func (t *Tracker) Calls() int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset sets both totals back to zero
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.metrics = types.ImpactMetrics{}
	t.calls = 0
	t.mu.Unlock()
}
