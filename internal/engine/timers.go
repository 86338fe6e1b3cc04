// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"time"

	"github.com/ManuGH/radiosync/internal/clock"
)

type timerKind int

const (
	timerPoll timerKind = iota
	timerHeartbeat
	timerBuffer
	timerStall
	timerHealthy
	timerReconnect
	timerSettle
	timerGrace
	timerResume
)

func (k timerKind) String() string {
	switch k {
	case timerPoll:
		return "poll"
	case timerHeartbeat:
		return "heartbeat"
	case timerBuffer:
		return "buffer"
	case timerStall:
		return "stall"
	case timerHealthy:
		return "healthy"
	case timerReconnect:
		return "reconnect"
	case timerSettle:
		return "settle"
	case timerGrace:
		return "grace"
	case timerResume:
		return "resume"
	default:
		return "unknown"
	}
}

type timerFired struct {
	kind  timerKind
	token uint64
}

type armed struct {
	timer clock.Timer
	token uint64
}

// timerSet holds at most one timer per kind. Every firing carries a token so a
// callback that raced with cancel or re-arm is recognised as stale.
type timerSet struct {
	clock clock.Clock
	post  func(any)
	seq   uint64
	live  map[timerKind]armed
}

func newTimerSet(clk clock.Clock, post func(any)) *timerSet {
	return &timerSet{clock: clk, post: post, live: make(map[timerKind]armed)}
}

func (ts *timerSet) arm(kind timerKind, d time.Duration) {
	ts.cancel(kind)
	ts.seq++
	token := ts.seq
	t := ts.clock.AfterFunc(d, func() { ts.post(timerFired{kind: kind, token: token}) })
	ts.live[kind] = armed{timer: t, token: token}
}

// armIfIdle arms kind unless it is already pending.
func (ts *timerSet) armIfIdle(kind timerKind, d time.Duration) {
	if _, ok := ts.live[kind]; ok {
		return
	}
	ts.arm(kind, d)
}

func (ts *timerSet) cancel(kinds ...timerKind) {
	for _, kind := range kinds {
		if a, ok := ts.live[kind]; ok {
			a.timer.Stop()
			delete(ts.live, kind)
		}
	}
}

func (ts *timerSet) cancelAll() {
	for kind, a := range ts.live {
		a.timer.Stop()
		delete(ts.live, kind)
	}
}

func (ts *timerSet) pending(kind timerKind) bool {
	_, ok := ts.live[kind]
	return ok
}

// claim consumes a firing. It reports false for stale tokens.
func (ts *timerSet) claim(f timerFired) bool {
	a, ok := ts.live[f.kind]
	if !ok || a.token != f.token {
		return false
	}
	delete(ts.live, f.kind)
	return true
}
