// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package nowplaying

import (
	"github.com/ManuGH/radiosync/internal/position"
	"github.com/ManuGH/radiosync/internal/track"
)

// Snapshot is the now-playing payload.
type Snapshot struct {
	Title              string  `json:"title"`
	Artist             string  `json:"artist"`
	Album              string  `json:"album"`
	Duration           float64 `json:"duration"`
	Path               string  `json:"path"`
	PlaybackPosition   float64 `json:"playback_position"`
	PlaybackPositionMs *int64  `json:"playback_position_ms,omitempty"`
	ActiveListeners    *int    `json:"active_listeners,omitempty"`
	Error              string  `json:"error,omitempty"`
}

// Position is the authoritative position in seconds, preferring milliseconds.
func (s Snapshot) Position() float64 {
	return position.ServerPosition(s.PlaybackPosition, s.PlaybackPositionMs)
}

// TrackID is the identity used for change detection.
func (s Snapshot) TrackID() string {
	return track.Key(s.Path, s.Title, s.Artist, s.Album)
}

// Heartbeat is the listener keep-alive response.
type Heartbeat struct {
	ActiveListeners *int     `json:"active_listeners,omitempty"`
	RadioPosition   *float64 `json:"radio_position,omitempty"`
	RadioPositionMs *int64   `json:"radio_position_ms,omitempty"`
}

// Position returns the reported radio position, if any.
func (h Heartbeat) Position() (float64, bool) {
	if h.RadioPosition == nil && h.RadioPositionMs == nil {
		return 0, false
	}
	var secs float64
	if h.RadioPosition != nil {
		secs = *h.RadioPosition
	}
	return position.ServerPosition(secs, h.RadioPositionMs), true
}
