// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package hostaudio is the contract between the engine and the host's opaque
// audio-playback primitive.
package hostaudio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAutoplayBlocked is returned by Play when the host requires a user gesture first.
var ErrAutoplayBlocked = errors.New("hostaudio: play requires user interaction")

// EventKind names a primitive lifecycle event.
type EventKind string

const (
	EventPlaying    EventKind = "playing"
	EventWaiting    EventKind = "waiting"
	EventStalled    EventKind = "stalled"
	EventError      EventKind = "error"
	EventEnded      EventKind = "ended"
	EventPause      EventKind = "pause"
	EventTimeUpdate EventKind = "timeupdate"
)

// Event is emitted on the primitive's event channel. Source identifies the
// transport that produced it so late events from a torn-down source can be ignored.
type Event struct {
	Kind   EventKind
	Source string
	Err    *MediaError
	At     time.Time
}

// ReadyState mirrors the host's readiness ladder.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// MediaErrorCode classifies primitive faults.
type MediaErrorCode int

const (
	MediaErrAborted         MediaErrorCode = 1
	MediaErrNetwork         MediaErrorCode = 2
	MediaErrDecode          MediaErrorCode = 3
	MediaErrSrcNotSupported MediaErrorCode = 4
	MediaErrQuotaExceeded   MediaErrorCode = 22
)

func (c MediaErrorCode) String() string {
	switch c {
	case MediaErrAborted:
		return "aborted"
	case MediaErrNetwork:
		return "network"
	case MediaErrDecode:
		return "decode"
	case MediaErrSrcNotSupported:
		return "src_not_supported"
	case MediaErrQuotaExceeded:
		return "quota_exceeded"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

// MediaError is a fault reported by the primitive.
type MediaError struct {
	Code    MediaErrorCode
	Message string
}

func (e *MediaError) Error() string {
	if e.Message == "" {
		return "media error: " + e.Code.String()
	}
	return fmt.Sprintf("media error: %s: %s", e.Code, e.Message)
}

// Range is a buffered time range in seconds.
type Range struct {
	Start float64
	End   float64
}

// BufferedAhead returns the seconds buffered past t within the range containing t.
func BufferedAhead(ranges []Range, t float64) float64 {
	for _, r := range ranges {
		if t >= r.Start && t <= r.End {
			return r.End - t
		}
	}
	return 0
}

// Primitive is the host audio element. Implementations must be safe to call
// from the engine goroutine while they deliver events on Events.
type Primitive interface {
	// SetSource points the primitive at a transport URL without starting it.
	SetSource(url string) error
	// ClearSource stops and detaches the current source. Safe without a source.
	ClearSource()
	Play(ctx context.Context) error
	Pause()

	CurrentTime() float64
	Seek(t float64)
	Buffered() []Range
	ReadyState() ReadyState
	Paused() bool
	HasSource() bool

	PlaybackRate() float64
	SetPlaybackRate(rate float64)
	SetVolume(v float64)
	SetMuted(m bool)

	Events() <-chan Event
}

// Trimmer is implemented by primitives backed by a bounded media buffer that
// can drop already-played ranges when the host quota is exceeded.
type Trimmer interface {
	TrimPlayed(before float64) error
}
