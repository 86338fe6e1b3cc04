// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package position estimates the playback position of the live stream between
// server updates and corrects that estimate against the server's authority.
package position

import (
	"math"
	"time"
)

// Model is a pure function of wall-clock time and the recorded anchor.
// All synchronization reduces to updating the anchor and the correction.
type Model struct {
	AnchorPosition float64   // seconds
	AnchorTime     time.Time // when the anchor was trusted
	Correction     float64   // accumulated additive bias, seconds
	Duration       float64   // 0 means unknown/unbounded
}

// Estimate returns the clamped position at now.
func (m Model) Estimate(now time.Time) float64 {
	elapsed := 0.0
	if !m.AnchorTime.IsZero() {
		elapsed = float64(now.Sub(m.AnchorTime).Milliseconds()) / 1000
	}
	return Clamp(m.AnchorPosition+elapsed+m.Correction, m.Duration)
}

// ResetAnchor trusts position as of now and discards any accumulated correction.
func (m *Model) ResetAnchor(position float64, now time.Time) {
	m.AnchorPosition = position
	m.AnchorTime = now
	m.Correction = 0
}

// Clamp bounds pos to [0, duration], or [0, +Inf) when duration is unknown.
func Clamp(pos, duration float64) float64 {
	if math.IsNaN(pos) || pos < 0 {
		return 0
	}
	if duration > 0 && pos > duration {
		return duration
	}
	return pos
}
