// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package buffer

import (
	"testing"
	"time"

	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func playing(ahead float64) Sample {
	return Sample{Ahead: ahead, HasSource: true, CanPlay: true}
}

func TestEvaluate_Ladder(t *testing.T) {
	dev := profile.DeviceFor(profile.DeviceDesktop)
	m := New(dev)

	d := m.Evaluate(playing(20), t0)
	assert.Equal(t, ActionNone, d.Action)

	d = m.Evaluate(playing(4), t0.Add(2*time.Second))
	require.Equal(t, ActionShadeRate, d.Action)
	assert.InDelta(t, dev.ShadeRate, d.Rate, 1e-9)
	assert.True(t, m.Shaded())

	// Still low: no repeated shading.
	d = m.Evaluate(playing(4.5), t0.Add(4*time.Second))
	assert.Equal(t, ActionNone, d.Action)

	// Between low and healthy: hysteresis keeps the shade.
	d = m.Evaluate(playing(7), t0.Add(6*time.Second))
	assert.Equal(t, ActionNone, d.Action)

	d = m.Evaluate(playing(11), t0.Add(8*time.Second))
	require.Equal(t, ActionRestoreRate, d.Action)
	assert.Equal(t, 1.0, d.Rate)
	assert.False(t, m.Shaded())
}

func TestEvaluate_CriticalAndShrinking(t *testing.T) {
	dev := profile.DeviceFor(profile.DeviceDesktop)
	m := New(dev)

	// Critical on the first sample is not yet known to be shrinking.
	d := m.Evaluate(playing(1.5), t0)
	assert.Equal(t, ActionShadeRate, d.Action)

	d = m.Evaluate(playing(1.0), t0.Add(2*time.Second))
	require.Equal(t, ActionPauseResume, d.Action)
	assert.Equal(t, dev.CriticalPause, d.Pause)

	// Critical but growing again.
	d = m.Evaluate(playing(1.8), t0.Add(4*time.Second))
	assert.Equal(t, ActionNone, d.Action)
}

func TestEvaluate_NoSourceEscalates(t *testing.T) {
	m := New(profile.DeviceFor(profile.DeviceIOS))
	d := m.Evaluate(Sample{}, t0)
	assert.Equal(t, ActionEscalate, d.Action)
	assert.Equal(t, "no_source", d.Reason)
}

func TestEvaluate_PausedIsLeftAlone(t *testing.T) {
	m := New(profile.DeviceFor(profile.DeviceDesktop))
	d := m.Evaluate(Sample{HasSource: true, Paused: true}, t0)
	assert.Equal(t, ActionNone, d.Action)
}

func TestEvaluate_NotReadyCountsAsStall(t *testing.T) {
	m := New(profile.DeviceFor(profile.DeviceDesktop))
	d := m.Evaluate(Sample{HasSource: true}, t0)
	assert.Equal(t, ActionNudge, d.Action)
}

func TestOnStall_FiveStallsInWindowReloadOnce(t *testing.T) {
	dev := profile.DeviceFor(profile.DeviceAndroid)
	require.True(t, dev.Constrained)
	m := New(dev)

	var reloads, escalations int
	for i := 0; i < 5; i++ {
		d := m.OnStall(t0.Add(time.Duration(i) * 2 * time.Second))
		switch d.Action {
		case ActionReload:
			reloads++
		case ActionEscalate:
			escalations++
		default:
			assert.Equal(t, ActionNudge, d.Action)
		}
	}
	assert.Equal(t, 1, reloads)
	assert.Zero(t, escalations)
}

func TestOnStall_EscalatesAfterReloadCap(t *testing.T) {
	dev := profile.DeviceFor(profile.DeviceDesktop)
	m := New(dev)

	now := t0
	var actions []Action
	for len(actions) < 50 {
		d := m.OnStall(now)
		actions = append(actions, d.Action)
		if d.Action == ActionEscalate {
			break
		}
		now = now.Add(dev.StallWindow / 4)
	}
	require.Equal(t, ActionEscalate, actions[len(actions)-1])

	reloads := 0
	for _, a := range actions {
		if a == ActionReload {
			reloads++
		}
	}
	assert.Equal(t, dev.MaxReloads, reloads)
}

func TestOnStall_IsolatedStallsOnlyNudge(t *testing.T) {
	dev := profile.DeviceFor(profile.DeviceDesktop)
	m := New(dev)
	for i := 0; i < 10; i++ {
		d := m.OnStall(t0.Add(time.Duration(i) * (dev.StallWindow + time.Second)))
		assert.Equal(t, ActionNudge, d.Action, "stall %d", i)
	}
}

func TestResetReloads(t *testing.T) {
	dev := profile.DeviceFor(profile.DeviceAndroid)
	m := New(dev)
	m.OnStall(t0)
	require.Equal(t, ActionReload, m.OnStall(t0.Add(time.Second)).Action)
	require.Equal(t, 1, m.Reloads())

	m.ResetReloads()
	assert.Zero(t, m.Reloads())
	m.OnStall(t0.Add(2 * time.Second))
	assert.Equal(t, ActionReload, m.OnStall(t0.Add(3*time.Second)).Action, "cooldown cleared with the budget")
}
