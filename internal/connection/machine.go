// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package connection

import (
	"context"
	"fmt"

	"github.com/ManuGH/radiosync/internal/fsm"
	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/metrics"
	"github.com/rs/zerolog"
)

// Machine is the single writer of connection state. Other components request
// transitions through Fire and never set the state directly.
type Machine struct {
	m      *fsm.Machine[State, Event]
	logger zerolog.Logger
}

// NewMachine returns a machine in Disconnected.
func NewMachine() *Machine {
	m, err := fsm.New[State, Event](Disconnected, transitionsTable())
	if err != nil {
		// The table is static; a duplicate edge is a programming error.
		panic(fmt.Sprintf("connection: invalid transition table: %v", err))
	}
	cm := &Machine{m: m, logger: xglog.WithComponent("connection")}
	m.Observe(func(from, to State, ev Event) {
		metrics.RecordTransition(string(from), string(to), string(ev))
		cm.logger.Info().
			Str(xglog.FieldEvent, "connection.transition").
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(to)).
			Str(xglog.FieldReason, string(ev)).
			Msg("connection state changed")
	})
	metrics.SetConnectionState(string(Disconnected))
	return cm
}

// Observe registers a callback run after each transition.
func (cm *Machine) Observe(fn func(from, to State, ev Event)) {
	cm.m.Observe(fn)
}

// State returns the current state.
func (cm *Machine) State() State { return cm.m.State() }

// Can reports whether ev is a legal edge from the current state.
func (cm *Machine) Can(ev Event) bool { return cm.m.Can(ev) }

// Fire applies ev; illegal edges return an error wrapping fsm.ErrInvalidTransition.
func (cm *Machine) Fire(ctx context.Context, ev Event) (State, error) {
	return cm.m.Fire(ctx, ev)
}

// CanReconnect decides whether a new reconnection attempt is permitted.
// inFlight is the scheduler's mutex: while an attempt is in flight the session
// counts as already reconnecting.
func (cm *Machine) CanReconnect(playing, inFlight bool) bool {
	if !playing || inFlight {
		return false
	}
	return cm.State().Active()
}

// Active reports whether the state belongs to a live session.
func (s State) Active() bool {
	return s == Connecting || s == Connected || s == Reconnecting
}
