// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package connection

import "github.com/ManuGH/radiosync/internal/fsm"

type edge = fsm.Transition[State, Event]

var faultEvents = []Event{EvMediaError, EvMediaStalledTimeout, EvNoSource, EvUnexpectedPause}

func transitionsTable() []edge {
	t := []edge{
		// Start path
		{From: Disconnected, Event: EvStart, To: Connecting},
		{From: Error, Event: EvStart, To: Connecting},
		{From: Connecting, Event: EvMediaPlaying, To: Connected},

		// Recovery
		{From: Reconnecting, Event: EvMediaPlaying, To: Connected},

		// Budget exhaustion
		{From: Connecting, Event: EvAttemptsExhausted, To: Error},
		{From: Connected, Event: EvAttemptsExhausted, To: Error},
		{From: Reconnecting, Event: EvAttemptsExhausted, To: Error},
	}

	// Faults. Reconnecting keeps a self-edge so a failed attempt can be retried
	// until the budget runs out.
	for _, from := range []State{Connecting, Connected, Reconnecting} {
		for _, ev := range faultEvents {
			t = append(t, edge{From: from, Event: ev, To: Reconnecting})
		}
	}

	// User stop from anywhere.
	for _, from := range AllStates() {
		t = append(t, edge{From: from, Event: EvUserStop, To: Disconnected})
	}
	return t
}
