// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"time"
)

// HeatDecayDuration is how long a row glows after traffic touches it.
// Heat starts at 1.0 and decays linearly to 0.0 over this duration.
const HeatDecayDuration = 5 * time.Second

// HeatTickInterval is the re-render interval while any rows are hot.
// 100ms gives ~10fps animation for smooth color decay.
const HeatTickInterval = 100 * time.Millisecond

// HeatKind distinguishes activity from removal for color selection.
type HeatKind int

const (
	// HeatPut indicates new activity on a row (amber glow).
	HeatPut HeatKind = iota
	// HeatRemove indicates the row's subject went away (red glow).
	HeatRemove
)

// heatEntry records when and how a row was last touched.
type heatEntry struct {
	ignition time.Time
	kind     HeatKind
}

// HeatTracker maps row keys to ignition timestamps for animated
// activity highlighting. Each event "ignites" a row, which then
// decays from full intensity to zero over [HeatDecayDuration].
type HeatTracker struct {
	entries map[string]heatEntry
}

// NewHeatTracker creates an empty heat tracker.
func NewHeatTracker() *HeatTracker {
	return &HeatTracker{
		entries: make(map[string]heatEntry),
	}
}

// Ignite records an event for a row. Resets the decay timer if the
// row was already hot.
func (tracker *HeatTracker) Ignite(key string, kind HeatKind, now time.Time) {
	tracker.entries[key] = heatEntry{ignition: now, kind: kind}
}

// Heat returns the current intensity for a row: 1.0 at ignition,
// linearly decaying to 0.0 over [HeatDecayDuration]. Returns 0.0 for
// rows that were never ignited or have fully decayed.
func (tracker *HeatTracker) Heat(key string, now time.Time) float64 {
	entry, exists := tracker.entries[key]
	if !exists {
		return 0.0
	}
	elapsed := now.Sub(entry.ignition)
	if elapsed >= HeatDecayDuration {
		return 0.0
	}
	return 1.0 - float64(elapsed)/float64(HeatDecayDuration)
}

// Kind returns the heat kind for a row (activity or removal). Only
// meaningful when Heat() returns > 0.
func (tracker *HeatTracker) Kind(key string) HeatKind {
	entry, exists := tracker.entries[key]
	if !exists {
		return HeatPut
	}
	return entry.kind
}

// HasHot returns true if any tracked row still has heat > 0, meaning
// the tick timer should keep running for animation.
func (tracker *HeatTracker) HasHot(now time.Time) bool {
	for key, entry := range tracker.entries {
		if now.Sub(entry.ignition) < HeatDecayDuration {
			return true
		}
		// Garbage-collect fully decayed entries.
		delete(tracker.entries, key)
	}
	return false
}
