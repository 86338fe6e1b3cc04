// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resume persists a best-effort starting position and the listener's
// volume preferences. It is never consulted for mid-session sync.
package resume

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/ManuGH/radiosync/internal/clock"
	"github.com/ManuGH/radiosync/internal/kvstore"
	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/rs/zerolog"
)

const (
	keyState  = "radiosync.resume"
	keyVolume = "radiosync.volume"
	keyMuted  = "radiosync.muted"
)

// State is the persisted blob.
type State struct {
	TrackID   string  `json:"trackId"`
	Position  float64 `json:"position"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
	Platform  string  `json:"platform"`
}

// SavedAt returns the write time.
func (s State) SavedAt() time.Time { return time.UnixMilli(s.Timestamp) }

// Projected advances the saved position by the time since it was written.
func (s State) Projected(now time.Time) float64 {
	age := now.Sub(s.SavedAt())
	if age < 0 {
		age = 0
	}
	return s.Position + age.Seconds()
}

// Prefs are the scalar audio preferences.
type Prefs struct {
	Volume float64
	Muted  bool
}

// Keeper reads and writes resume data. Store failures are logged and swallowed;
// resume is best effort.
type Keeper struct {
	store    kvstore.Store
	clock    clock.Clock
	platform string
	maxAge   time.Duration
	logger   zerolog.Logger
}

func NewKeeper(store kvstore.Store, clk clock.Clock, platform string, maxAge time.Duration) *Keeper {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Keeper{
		store:    store,
		clock:    clk,
		platform: platform,
		maxAge:   maxAge,
		logger:   xglog.WithComponent("resume"),
	}
}

// SetMaxAge changes the staleness bound.
func (k *Keeper) SetMaxAge(d time.Duration) { k.maxAge = d }

// Save records the current track and position.
func (k *Keeper) Save(ctx context.Context, trackID string, position float64) {
	raw, err := json.Marshal(State{
		TrackID:   trackID,
		Position:  position,
		Timestamp: k.clock.Now().UnixMilli(),
		Platform:  k.platform,
	})
	if err != nil {
		return
	}
	if err := k.store.Put(ctx, keyState, raw); err != nil {
		k.logger.Warn().Err(err).Msg("save resume state failed")
	}
}

// Load returns a fresh resume blob. Missing, malformed, stale and
// future-dated entries are all reported as absent.
func (k *Keeper) Load(ctx context.Context) (State, bool) {
	raw, err := k.store.Get(ctx, keyState)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			k.logger.Warn().Err(err).Msg("load resume state failed")
		}
		return State{}, false
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		k.logger.Debug().Err(err).Msg("discarding malformed resume state")
		return State{}, false
	}
	age := k.clock.Now().Sub(st.SavedAt())
	if age < 0 || (k.maxAge > 0 && age > k.maxAge) {
		k.logger.Debug().Dur("age", age).Msg("ignoring stale resume state")
		return State{}, false
	}
	return st, true
}

// Clear removes the resume blob.
func (k *Keeper) Clear(ctx context.Context) {
	if err := k.store.Delete(ctx, keyState); err != nil {
		k.logger.Warn().Err(err).Msg("clear resume state failed")
	}
}

// SaveVolume persists volume in [0,1].
func (k *Keeper) SaveVolume(ctx context.Context, v float64) {
	if err := k.store.Put(ctx, keyVolume, []byte(strconv.FormatFloat(clampVolume(v), 'f', 3, 64))); err != nil {
		k.logger.Warn().Err(err).Msg("save volume failed")
	}
}

// SaveMuted persists the mute flag.
func (k *Keeper) SaveMuted(ctx context.Context, m bool) {
	if err := k.store.Put(ctx, keyMuted, []byte(strconv.FormatBool(m))); err != nil {
		k.logger.Warn().Err(err).Msg("save muted failed")
	}
}

// Prefs returns the stored preferences, defaulting to full volume unmuted.
func (k *Keeper) Prefs(ctx context.Context) Prefs {
	p := Prefs{Volume: 1}
	if raw, err := k.store.Get(ctx, keyVolume); err == nil {
		if v, err := strconv.ParseFloat(string(raw), 64); err == nil {
			p.Volume = clampVolume(v)
		}
	}
	if raw, err := k.store.Get(ctx, keyMuted); err == nil {
		if m, err := strconv.ParseBool(string(raw)); err == nil {
			p.Muted = m
		}
	}
	return p
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
