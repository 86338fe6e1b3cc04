// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package connection holds the authoritative session state machine.
package connection

// State is the connection state of a playback session.
type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
	Reconnecting State = "reconnecting"
	Error        State = "error"
)

// Event drives a state transition.
type Event string

const (
	EvStart               Event = "start"
	EvMediaPlaying        Event = "media_playing"
	EvMediaError          Event = "media_error"
	EvMediaStalledTimeout Event = "media_stalled_timeout"
	EvNoSource            Event = "no_source"
	EvUnexpectedPause     Event = "unexpected_pause"
	EvAttemptsExhausted   Event = "attempts_exhausted"
	EvUserStop            Event = "user_stop"
)

// IsFault reports whether ev is one of the playback faults that request reconnection.
func (ev Event) IsFault() bool {
	switch ev {
	case EvMediaError, EvMediaStalledTimeout, EvNoSource, EvUnexpectedPause:
		return true
	default:
		return false
	}
}

// AllStates lists every state, in lifecycle order.
func AllStates() []State {
	return []State{Disconnected, Connecting, Connected, Reconnecting, Error}
}

// AllEvents lists every event.
func AllEvents() []Event {
	return []Event{
		EvStart, EvMediaPlaying, EvMediaError, EvMediaStalledTimeout,
		EvNoSource, EvUnexpectedPause, EvAttemptsExhausted, EvUserStop,
	}
}
