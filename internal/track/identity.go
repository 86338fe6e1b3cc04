// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package track follows the identity of the currently playing item and decides
// when a track boundary requires a transport reload.
package track

import "strings"

// Change is emitted when a snapshot carries a new identity.
type Change struct {
	Previous string
	Current  string
	// ArmGrace is set when the caller must start the grace timer for a reload.
	ArmGrace bool
}

// Identity tracks the current item and at most one pending reload.
// It is not safe for concurrent use; the engine is its sole owner.
type Identity struct {
	current string
	known   bool
	pending bool
	token   uint64
}

// Key derives an identity from a snapshot's path, falling back to its metadata.
func Key(path, title, artist, album string) string {
	if p := strings.TrimSpace(path); p != "" {
		return p
	}
	if title == "" && artist == "" && album == "" {
		return ""
	}
	return artist + "\x1f" + title + "\x1f" + album
}

// Current returns the known identity, or "" if none.
func (i *Identity) Current() string { return i.current }

// Pending reports whether a reload is waiting on the grace timer.
func (i *Identity) Pending() bool { return i.pending }

// Token identifies the currently armed grace timer.
func (i *Identity) Token() uint64 { return i.token }

// Observe compares id against the known identity. The first identity seen
// establishes the baseline and is not a change. A change while playing arms a
// reload unless one is already pending, so repeated polls or rapid successive
// changes during the grace period coalesce into one reload.
func (i *Identity) Observe(id string, playing bool) (Change, bool) {
	if id == "" {
		return Change{}, false
	}
	if !i.known {
		i.current = id
		i.known = true
		return Change{}, false
	}
	if id == i.current {
		return Change{}, false
	}
	ch := Change{Previous: i.current, Current: id}
	i.current = id
	if playing && !i.pending {
		i.pending = true
		i.token++
		ch.ArmGrace = true
	}
	return ch, true
}

// Fire consumes the pending reload if token still matches the armed timer.
func (i *Identity) Fire(token uint64) bool {
	if !i.pending || token != i.token {
		return false
	}
	i.pending = false
	return true
}

// Ended consumes a pending reload immediately when the host reports the end of
// the current source. It reports whether a reload was pending.
func (i *Identity) Ended() bool {
	if !i.pending {
		return false
	}
	i.pending = false
	i.token++ // invalidate the armed grace timer
	return true
}

// Cancel drops any pending reload, e.g. when the transport is rebuilt anyway.
func (i *Identity) Cancel() {
	if i.pending {
		i.pending = false
		i.token++
	}
}

// Reset forgets the identity entirely.
func (i *Identity) Reset() {
	i.current = ""
	i.known = false
	i.Cancel()
}
