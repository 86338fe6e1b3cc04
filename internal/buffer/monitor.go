// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package buffer implements the buffer-health ladder: rate shading, brief
// pause/resume, in-place stall recovery, transport reload and escalation.
package buffer

import (
	"time"

	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/metrics"
	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/rs/zerolog"
)

// Action is one rung of the ladder, least to most invasive.
type Action int

const (
	ActionNone Action = iota
	ActionRestoreRate
	ActionShadeRate
	ActionPauseResume
	ActionNudge
	ActionReload
	ActionEscalate
)

func (a Action) String() string {
	switch a {
	case ActionRestoreRate:
		return "restore_rate"
	case ActionShadeRate:
		return "shade_rate"
	case ActionPauseResume:
		return "pause_resume"
	case ActionNudge:
		return "nudge"
	case ActionReload:
		return "reload"
	case ActionEscalate:
		return "escalate"
	default:
		return "none"
	}
}

// NudgeSeconds is the forward seek used for in-place stall recovery.
const NudgeSeconds = 0.1

// Sample is one reading of the host primitive.
type Sample struct {
	// Ahead is buffered seconds past the playhead.
	Ahead     float64
	HasSource bool
	Paused    bool
	// CanPlay is true once the primitive has future data available.
	CanPlay bool
}

// Decision is what the caller must do with the primitive.
type Decision struct {
	Action Action
	Rate   float64
	Pause  time.Duration
	Reason string
}

// Monitor owns the ladder state. It is not safe for concurrent use; the engine
// is its sole owner.
type Monitor struct {
	dev        profile.Device
	logger     zerolog.Logger
	lastAhead  float64
	haveLast   bool
	shaded     bool
	stalls     []time.Time
	reloads    int
	lastReload time.Time
}

// New returns a monitor using the device's thresholds.
func New(dev profile.Device) *Monitor {
	return &Monitor{dev: dev, logger: xglog.WithComponent("buffer")}
}

// Evaluate maps a sample to the least invasive action that addresses it.
func (m *Monitor) Evaluate(s Sample, now time.Time) Decision {
	prev, hadPrev := m.lastAhead, m.haveLast
	m.lastAhead, m.haveLast = s.Ahead, true

	switch {
	case !s.HasSource:
		return m.decide(Decision{Action: ActionEscalate, Reason: "no_source"})
	case s.Paused:
		return Decision{Action: ActionNone}
	case !s.CanPlay:
		return m.OnStall(now)
	case s.Ahead < m.dev.CriticalAhead && hadPrev && s.Ahead < prev:
		return m.decide(Decision{Action: ActionPauseResume, Pause: m.dev.CriticalPause, Reason: "critical"})
	case s.Ahead < m.dev.LowAhead:
		if m.shaded {
			return Decision{Action: ActionNone}
		}
		m.shaded = true
		return m.decide(Decision{Action: ActionShadeRate, Rate: m.dev.ShadeRate, Reason: "low"})
	case s.Ahead > m.dev.HealthyAhead && m.shaded:
		m.shaded = false
		return m.decide(Decision{Action: ActionRestoreRate, Rate: 1, Reason: "healthy"})
	}
	return Decision{Action: ActionNone}
}

// OnStall records a stall. Repeated stalls inside the window escalate to at
// most one reload per window, and to the reconnection scheduler once the
// reload cap is spent.
func (m *Monitor) OnStall(now time.Time) Decision {
	window := m.dev.StallWindow
	kept := m.stalls[:0]
	for _, ts := range m.stalls {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	m.stalls = append(kept, now)

	if len(m.stalls) < m.dev.StallsBeforeReload {
		return m.decide(Decision{Action: ActionNudge, Reason: "stall"})
	}
	if m.reloads >= m.dev.MaxReloads {
		return m.decide(Decision{Action: ActionEscalate, Reason: "reloads_exhausted"})
	}
	if m.reloads > 0 && now.Sub(m.lastReload) < window {
		return m.decide(Decision{Action: ActionNudge, Reason: "reload_cooldown"})
	}
	m.reloads++
	m.lastReload = now
	m.stalls = m.stalls[:0]
	return m.decide(Decision{Action: ActionReload, Reason: "repeated_stall"})
}

// Shaded reports whether the playback rate is currently shaded.
func (m *Monitor) Shaded() bool { return m.shaded }

// Reloads returns the reloads spent since the last reset.
func (m *Monitor) Reloads() int { return m.reloads }

// SetDevice swaps thresholds without clearing counters.
func (m *Monitor) SetDevice(dev profile.Device) { m.dev = dev }

// ResetReloads restores the reload budget after a healthy period.
func (m *Monitor) ResetReloads() {
	m.reloads = 0
	m.lastReload = time.Time{}
	m.stalls = m.stalls[:0]
}

// NewTransport forgets rate shading and the last sample after a rebuild. The
// stall history and reload budget survive so repeated reloads still escalate.
func (m *Monitor) NewTransport() {
	m.shaded = false
	m.haveLast = false
	m.lastAhead = 0
}

// Reset clears all ladder state for a new session.
func (m *Monitor) Reset() {
	m.ResetReloads()
	m.NewTransport()
}

func (m *Monitor) decide(d Decision) Decision {
	metrics.RecordBufferIntervention(d.Action.String())
	m.logger.Debug().
		Str(xglog.FieldEvent, "buffer.intervention").
		Str("action", d.Action.String()).
		Str(xglog.FieldReason, d.Reason).
		Float64("ahead", m.lastAhead).
		Msg("buffer ladder action")
	return d
}
