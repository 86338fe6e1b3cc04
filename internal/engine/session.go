// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"time"

	"github.com/ManuGH/radiosync/internal/connection"
	"github.com/ManuGH/radiosync/internal/position"
	"github.com/ManuGH/radiosync/internal/track"
	"github.com/google/uuid"
)

// Session is the state of one connect-to-disconnect lifecycle. It is owned by
// the engine loop and never shared.
type Session struct {
	ID           string
	ConnectionID string

	TrackID string
	Title   string
	Artist  string
	Model   position.Model
	Gap     position.Gap
	Track   track.Identity

	LastServerSync         time.Time
	ConsecutiveMediaErrors int
	ActiveListeners        int

	// Playing is the listener's intent, not the primitive's state.
	Playing          bool
	NeedsInteraction bool
	// SelfPaused marks a pause the engine issued itself.
	SelfPaused bool
	// Source is the transport URL currently attached to the primitive.
	Source string
	// Seeded is set when the model was seeded from resume data.
	Seeded bool

	graceToken uint64
}

func newSession() *Session {
	return &Session{
		ID:           uuid.NewString(),
		ConnectionID: uuid.NewString(),
		Playing:      true,
	}
}

// Status is the snapshot published to UI collaborators.
type Status struct {
	State             connection.State `json:"state"`
	SessionID         string           `json:"sessionId,omitempty"`
	ConnectionID      string           `json:"connectionId,omitempty"`
	TrackID           string           `json:"trackId,omitempty"`
	Title             string           `json:"title,omitempty"`
	Artist            string           `json:"artist,omitempty"`
	Position          float64          `json:"position"`
	Duration          float64          `json:"duration"`
	ReconnectAttempts int              `json:"reconnectAttempts"`
	NeedsInteraction  bool             `json:"needsInteraction"`
	ActiveListeners   int              `json:"activeListeners"`
	DeviceClass       string           `json:"deviceClass"`
	NetworkClass      string           `json:"networkClass"`
	Volume            float64          `json:"volume"`
	Muted             bool             `json:"muted"`
	Message           string           `json:"message,omitempty"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// TrackChange is published on the track topic.
type TrackChange struct {
	SessionID string    `json:"sessionId"`
	Previous  string    `json:"previous"`
	Current   string    `json:"current"`
	Title     string    `json:"title,omitempty"`
	Artist    string    `json:"artist,omitempty"`
	At        time.Time `json:"at"`
}

// TerminalMessage is shown once when the reconnection budget is exhausted.
const TerminalMessage = "Connection lost. Press play to reconnect."
