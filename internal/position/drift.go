// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package position

import (
	"math"
	"time"
)

// Action is the outcome of one drift evaluation.
type Action string

const (
	ActionNone       Action = "none"
	ActionContinuity Action = "continuity"
	ActionPartial    Action = "partial"
	ActionHardReset  Action = "hard_reset"
)

// Policy parameterises the corrector; values come from the device profile.
type Policy struct {
	Tolerance        float64       // |drift| at or below this is noise
	HardThreshold    float64       // |drift| above this forces a reset
	CorrectionFactor float64       // share of drift applied per cycle
	MaxReconnectGap  time.Duration // continuity window after a disconnect
}

// Gap describes the most recent disconnection, if any.
type Gap struct {
	DisconnectedAt    time.Time
	LastKnownPosition float64
}

// Active reports whether the gap is still inside the continuity window.
func (g Gap) Active(now time.Time, window time.Duration) bool {
	return !g.DisconnectedAt.IsZero() && now.Sub(g.DisconnectedAt) < window
}

// Result describes what Apply did.
type Result struct {
	Action   Action
	Drift    float64 // server - estimate, before correction
	Estimate float64 // estimate before correction
	Applied  float64 // correction delta added (partial only)
}

// Corrector compares server positions against the model.
type Corrector struct {
	policy Policy
}

// NewCorrector returns a corrector using p.
func NewCorrector(p Policy) *Corrector {
	return &Corrector{policy: p}
}

// Policy returns the active policy.
func (c *Corrector) Policy() Policy { return c.policy }

// SetPolicy swaps the policy in place.
func (c *Corrector) SetPolicy(p Policy) { c.policy = p }

// Apply reconciles m with an authoritative server position observed at now.
func (c *Corrector) Apply(m *Model, server float64, now time.Time, gap Gap) Result {
	est := m.Estimate(now)
	drift := server - est
	res := Result{Action: ActionNone, Drift: drift, Estimate: est}

	if math.Abs(drift) <= c.policy.Tolerance {
		return res
	}

	// After a short recoverable blip prefer continuity over snapping.
	if gap.Active(now, c.policy.MaxReconnectGap) {
		projected := gap.LastKnownPosition + now.Sub(gap.DisconnectedAt).Seconds()
		if math.Abs(projected-server) <= c.policy.Tolerance {
			m.ResetAnchor(Clamp(projected, m.Duration), now)
			res.Action = ActionContinuity
			return res
		}
	}

	if c.policy.HardThreshold > 0 && math.Abs(drift) > c.policy.HardThreshold {
		m.ResetAnchor(Clamp(server, m.Duration), now)
		res.Action = ActionHardReset
		return res
	}

	res.Applied = drift * c.policy.CorrectionFactor
	m.Correction += res.Applied
	res.Action = ActionPartial
	return res
}

// ServerPosition converts a seconds value with an optional millisecond refinement.
func ServerPosition(seconds float64, millis *int64) float64 {
	if millis != nil && *millis >= 0 {
		return float64(*millis) / 1000
	}
	return seconds
}
