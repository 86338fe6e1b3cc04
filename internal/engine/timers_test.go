// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"testing"
	"time"

	"github.com/ManuGH/radiosync/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestTimerSet_StaleFiringRejected(t *testing.T) {
	clk := clock.NewFake(epoch0)
	var fired []timerFired
	ts := newTimerSet(clk, func(m any) { fired = append(fired, m.(timerFired)) })

	ts.arm(timerPoll, time.Second)
	clk.Advance(time.Second)
	ts.arm(timerPoll, time.Second)

	assert.Len(t, fired, 1)
	assert.False(t, ts.claim(fired[0]), "firing from a replaced timer is stale")

	clk.Advance(time.Second)
	assert.Len(t, fired, 2)
	assert.True(t, ts.claim(fired[1]))
	assert.False(t, ts.claim(fired[1]), "a firing is claimed once")
}

func TestTimerSet_CancelAndIdle(t *testing.T) {
	clk := clock.NewFake(epoch0)
	ts := newTimerSet(clk, func(any) {})

	ts.arm(timerStall, 5*time.Second)
	ts.armIfIdle(timerStall, time.Second)
	next, ok := clk.NextDeadline()
	assert.True(t, ok)
	assert.Equal(t, epoch0.Add(5*time.Second), next, "armIfIdle keeps the pending deadline")

	ts.arm(timerHealthy, time.Minute)
	ts.cancel(timerStall)
	assert.False(t, ts.pending(timerStall))
	assert.True(t, ts.pending(timerHealthy))

	ts.cancelAll()
	assert.Zero(t, clk.Pending())
	assert.Equal(t, "healthy", timerHealthy.String())
}
