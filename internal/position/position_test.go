// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package position

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func desktopPolicy() Policy {
	return Policy{Tolerance: 3, HardThreshold: 6, CorrectionFactor: 0.10, MaxReconnectGap: 10 * time.Second}
}

func TestModel_EstimateAdvancesAndClamps(t *testing.T) {
	m := Model{Duration: 200}
	m.ResetAnchor(120, t0)

	assert.InDelta(t, 125, m.Estimate(t0.Add(5*time.Second)), 1e-9)
	assert.Equal(t, 200.0, m.Estimate(t0.Add(500*time.Second)))

	m.Correction = -500
	assert.Equal(t, 0.0, m.Estimate(t0))

	unbounded := Model{}
	unbounded.ResetAnchor(10, t0)
	assert.InDelta(t, 1010, unbounded.Estimate(t0.Add(1000*time.Second)), 1e-9)
}

func TestModel_ResetAnchorClearsCorrection(t *testing.T) {
	m := Model{Correction: 1.5}
	m.ResetAnchor(3, t0)
	assert.Equal(t, 0.0, m.Correction)
	assert.Equal(t, 3.0, m.Estimate(t0))
}

func TestCorrector_WithinToleranceNoAction(t *testing.T) {
	m := Model{Duration: 200}
	m.ResetAnchor(100, t0)
	c := NewCorrector(desktopPolicy())

	res := c.Apply(&m, 102.5, t0, Gap{})
	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, 0.0, m.Correction)
}

// Server says 120 while the estimate sits at 125: partial correction of -0.5.
func TestCorrector_PartialCorrectionExample(t *testing.T) {
	m := Model{Duration: 200}
	m.ResetAnchor(115, t0)
	c := NewCorrector(desktopPolicy())

	now := t0.Add(5 * time.Second)
	require.InDelta(t, 120, m.Estimate(now), 1e-9)
	m.Correction = 5 // earlier correction already applied
	require.InDelta(t, 125, m.Estimate(now), 1e-9)

	res := c.Apply(&m, 120, now, Gap{})
	assert.Equal(t, ActionPartial, res.Action)
	assert.InDelta(t, -5, res.Drift, 1e-9)
	assert.InDelta(t, -0.5, res.Applied, 1e-9)
	assert.InDelta(t, 124.5, m.Estimate(now), 1e-9)
}

func TestCorrector_HardResetBeyondThreshold(t *testing.T) {
	m := Model{Duration: 300}
	m.ResetAnchor(100, t0)
	c := NewCorrector(desktopPolicy())

	res := c.Apply(&m, 150, t0, Gap{})
	assert.Equal(t, ActionHardReset, res.Action)
	assert.Equal(t, 150.0, m.Estimate(t0))
	assert.Equal(t, 0.0, m.Correction)
}

func TestCorrector_ContinuityAfterShortGap(t *testing.T) {
	m := Model{Duration: 300}
	m.ResetAnchor(0, t0) // estimate was lost during the blip
	c := NewCorrector(desktopPolicy())

	gap := Gap{DisconnectedAt: t0, LastKnownPosition: 100}
	now := t0.Add(4 * time.Second)

	// Projection 104 is within tolerance of 105: adopt it instead of snapping.
	res := c.Apply(&m, 105, now, gap)
	assert.Equal(t, ActionContinuity, res.Action)
	assert.InDelta(t, 104, m.Estimate(now), 1e-9)

	// Outside the window the gap no longer applies.
	m.ResetAnchor(0, t0)
	late := t0.Add(11 * time.Second)
	res = c.Apply(&m, 111, late, gap)
	assert.Equal(t, ActionHardReset, res.Action)
}

// A fixed reported drift converges geometrically below tolerance.
func TestCorrector_DriftConverges(t *testing.T) {
	for _, d := range []float64{4, 5, 5.9, -4, -5.9} {
		m := Model{}
		m.ResetAnchor(100, t0)
		c := NewCorrector(desktopPolicy())

		server := 100 + d
		prev := math.Abs(d)
		cycles := 0
		for ; cycles < 50; cycles++ {
			res := c.Apply(&m, server, t0, Gap{})
			if res.Action == ActionNone {
				break
			}
			require.Equal(t, ActionPartial, res.Action)
			errNow := math.Abs(server - m.Estimate(t0))
			require.LessOrEqual(t, errNow, prev, "error must not grow")
			prev = errNow
		}
		assert.Less(t, cycles, 10, "drift %v should converge within bounded cycles", d)
		assert.LessOrEqual(t, math.Abs(server-m.Estimate(t0)), 3.0)
	}
}

func TestServerPosition_PrefersMillis(t *testing.T) {
	ms := int64(12345)
	assert.InDelta(t, 12.345, ServerPosition(12, &ms), 1e-9)
	assert.Equal(t, 12.0, ServerPosition(12, nil))
}
