// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/radiosync/internal/bus"
	"github.com/ManuGH/radiosync/internal/connection"
	"github.com/ManuGH/radiosync/internal/hostaudio"
	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/metrics"
	"github.com/ManuGH/radiosync/internal/nowplaying"
	"github.com/ManuGH/radiosync/internal/position"
	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/ManuGH/radiosync/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type fetchKind int

const (
	fetchConnect fetchKind = iota
	fetchReconnect
	fetchReload
	fetchPoll
)

func (k fetchKind) String() string {
	switch k {
	case fetchConnect:
		return "connect"
	case fetchReconnect:
		return "reconnect"
	case fetchReload:
		return "reload"
	default:
		return "poll"
	}
}

type fetchResult struct {
	kind    fetchKind
	epoch   uint64
	trackID string
	snap    nowplaying.Snapshot
	err     error
	span    trace.Span
}

type heartbeatResult struct {
	sessionID string
	epoch     uint64
	hb        nowplaying.Heartbeat
	err       error
}

type playResult struct {
	epoch  uint64
	source string
	err    error
}

// TerminalNotice is published on the error topic once per exhausted session.
type TerminalNotice struct {
	SessionID string    `json:"sessionId"`
	Message   string    `json:"message"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

func (e *Engine) slog() *zerolog.Logger {
	l := e.logger
	if s := e.sess; s != nil {
		l = l.With().
			Str(xglog.FieldSessionID, s.ID).
			Str(xglog.FieldConnectionID, s.ConnectionID).
			Uint64(xglog.FieldEpoch, e.epoch).
			Logger()
	}
	return &l
}

// bumpEpoch invalidates every in-flight completion and cancels outstanding fetches.
func (e *Engine) bumpEpoch() {
	e.epoch++
	e.epochCancel()
	e.epochCtx, e.epochCancel = context.WithCancel(e.runCtx)
}

func (e *Engine) fire(ev connection.Event) bool {
	if _, err := e.conn.Fire(e.runCtx, ev); err != nil {
		e.slog().Warn().Err(err).Str(xglog.FieldReason, string(ev)).Msg("ignored connection event")
		return false
	}
	return true
}

func (e *Engine) connect() {
	s := newSession()
	e.sess = s
	e.sched.Reset()
	e.buffer.Reset()
	e.faults.Reset()
	e.terminalSent = false
	e.message = ""

	e.fire(connection.EvStart)
	e.bumpEpoch()

	if e.keeper != nil {
		ctx := context.WithoutCancel(e.runCtx)
		prefs := e.keeper.Prefs(ctx)
		e.volume, e.muted = prefs.Volume, prefs.Muted
		if st, ok := e.keeper.Load(ctx); ok {
			now := e.clock.Now()
			s.Model.ResetAnchor(st.Projected(now), now)
			s.Seeded = true
			e.slog().Debug().
				Str(xglog.FieldTrackID, st.TrackID).
				Float64(xglog.FieldPosition, st.Position).
				Msg("seeded position from resume state")
		}
	}
	e.prim.SetVolume(e.volume)
	e.prim.SetMuted(e.muted)

	e.slog().Info().
		Str(xglog.FieldEvent, "session.start").
		Str(xglog.FieldDeviceClass, string(e.tuning.Device.Class)).
		Str(xglog.FieldNetworkClass, string(e.tuning.Network.Class)).
		Msg("session started")

	e.fetch(fetchConnect)
	e.timers.arm(timerHeartbeat, e.cfg.HeartbeatInterval)
}

func (e *Engine) disconnect() {
	if e.sess != nil {
		e.saveResume()
		e.slog().Info().Str(xglog.FieldEvent, "session.stop").Msg("session stopped by user")
	}
	if e.conn.State() != connection.Disconnected {
		e.fire(connection.EvUserStop)
	}
	e.teardownTransport()
	e.timers.cancelAll()
	e.bumpEpoch()
	e.sess = nil
	e.message = ""
}

func (e *Engine) interact() {
	s := e.sess
	if s == nil || !s.NeedsInteraction {
		return
	}
	s.NeedsInteraction = false
	e.slog().Info().Msg("user gesture received, resuming playback")
	e.timers.arm(timerStall, e.tuning.Network.StallTimeout)
	e.startPlay()
}

// terminal gives up on the session after the reconnect budget is spent.
func (e *Engine) terminal(reason string) {
	s := e.sess
	e.fire(connection.EvAttemptsExhausted)
	e.saveResume()
	e.teardownTransport()
	e.timers.cancelAll()
	e.bumpEpoch()
	e.sess = nil
	e.message = TerminalMessage

	if e.terminalSent {
		return
	}
	e.terminalSent = true
	e.logger.Error().
		Str(xglog.FieldEvent, "reconnect.exhausted").
		Str(xglog.FieldSessionID, s.ID).
		Str(xglog.FieldReason, reason).
		Int(xglog.FieldAttempt, e.sched.Attempts()).
		Msg("reconnection budget exhausted")
	e.offer(bus.TopicError, TerminalNotice{
		SessionID: s.ID,
		Message:   TerminalMessage,
		Reason:    reason,
		At:        e.clock.Now(),
	})
}

// teardownTransport detaches the audio source. It is safe without one.
func (e *Engine) teardownTransport() {
	e.timers.cancel(timerStall, timerBuffer, timerResume, timerGrace)
	if s := e.sess; s != nil {
		s.Source = ""
		s.SelfPaused = false
		s.Track.Cancel()
	}
	e.prim.ClearSource()
	e.buffer.NewTransport()
}

func (e *Engine) saveResume() {
	s := e.sess
	if e.keeper == nil || s == nil || s.TrackID == "" {
		return
	}
	e.keeper.Save(context.WithoutCancel(e.runCtx), s.TrackID, s.Model.Estimate(e.clock.Now()))
}

func (e *Engine) fetch(kind fetchKind) {
	s := e.sess
	if s == nil {
		return
	}
	epoch, trackID := e.epoch, s.TrackID
	hints := e.tuning.Device.NowPlayingHints
	ctx, span := e.tracer.Start(e.epochCtx, "engine.fetch",
		trace.WithAttributes(telemetry.SessionAttributes(s.ID, s.ConnectionID, s.TrackID)...))
	e.goFn(func() {
		snap, err := e.src.NowPlaying(ctx, hints)
		e.post(fetchResult{kind: kind, epoch: epoch, trackID: trackID, snap: snap, err: err, span: span})
	})
}

func (e *Engine) onFetch(r fetchResult) {
	s := e.sess
	stale := s == nil || r.epoch != e.epoch || (r.kind == fetchPoll && r.trackID != s.TrackID)
	r.span.SetAttributes(telemetry.FetchAttributes(r.kind.String(), stale)...)
	if r.err != nil {
		r.span.RecordError(r.err)
		r.span.SetStatus(codes.Error, r.err.Error())
	}
	r.span.End()

	if stale {
		metrics.RecordStaleResult("now_playing")
		e.slog().Debug().
			Str(xglog.FieldEvent, "nowplaying.stale_rejected").
			Str("kind", r.kind.String()).
			Uint64("result_epoch", r.epoch).
			Msg("discarded superseded now-playing result")
		return
	}
	if r.kind == fetchPoll {
		e.onPoll(r)
		return
	}
	e.rebuild(e.startPosition(r), r.kind)
}

// startPosition decides where a (re)built transport starts.
func (e *Engine) startPosition(r fetchResult) float64 {
	s := e.sess
	now := e.clock.Now()
	if r.err != nil {
		e.slog().Warn().Err(r.err).
			Str("kind", r.kind.String()).
			Bool("seeded", s.Seeded).
			Msg("now-playing fetch failed, using local estimate")
		if r.kind == fetchReconnect && !s.Gap.DisconnectedAt.IsZero() {
			projected := s.Gap.LastKnownPosition + now.Sub(s.Gap.DisconnectedAt).Seconds()
			s.Model.ResetAnchor(position.Clamp(projected, s.Model.Duration), now)
		}
		return s.Model.Estimate(now)
	}

	snap := r.snap
	e.applyMeta(snap)
	server := position.Clamp(snap.Position(), snap.Duration)
	id := snap.TrackID()
	changed := id != "" && s.TrackID != "" && id != s.TrackID
	if ch, ok := s.Track.Observe(id, false); ok {
		e.publishTrackChange(ch.Previous, ch.Current, snap)
	}
	if id != "" {
		s.TrackID = id
	}
	s.Model.Duration = snap.Duration
	s.LastServerSync = now

	if r.kind == fetchReconnect && !changed && !s.Model.AnchorTime.IsZero() {
		res := e.correct(server, now)
		if res.Action == position.ActionContinuity || res.Action == position.ActionNone {
			return s.Model.Estimate(now)
		}
	}
	s.Model.ResetAnchor(server, now)
	return server
}

func (e *Engine) applyMeta(snap nowplaying.Snapshot) {
	s := e.sess
	s.Title, s.Artist = snap.Title, snap.Artist
	if snap.ActiveListeners != nil {
		s.ActiveListeners = *snap.ActiveListeners
	}
}

func (e *Engine) publishTrackChange(prev, cur string, snap nowplaying.Snapshot) {
	metrics.TrackChanges.Inc()
	e.slog().Info().
		Str(xglog.FieldEvent, "track.changed").
		Str("previous", prev).
		Str(xglog.FieldTrackID, cur).
		Msg("track changed")
	e.offer(bus.TopicTrack, TrackChange{
		SessionID: e.sess.ID,
		Previous:  prev,
		Current:   cur,
		Title:     snap.Title,
		Artist:    snap.Artist,
		At:        e.clock.Now(),
	})
}

func (e *Engine) correct(server float64, now time.Time) position.Result {
	s := e.sess
	res := e.corrector.Apply(&s.Model, server, now, s.Gap)
	metrics.ObserveDrift(res.Drift, string(res.Action))
	if res.Action != position.ActionNone {
		e.slog().Debug().
			Str(xglog.FieldEvent, "drift.corrected").
			Str("action", string(res.Action)).
			Float64(xglog.FieldDrift, res.Drift).
			Float64(xglog.FieldCorrection, res.Applied).
			Float64(xglog.FieldPosition, s.Model.Estimate(now)).
			Msg("drift corrected")
	}
	return res
}

// rebuild attaches a fresh transport starting at pos and starts playback.
func (e *Engine) rebuild(pos float64, kind fetchKind) {
	s := e.sess
	e.teardownTransport()

	t := e.tuning
	if kind == fetchReconnect {
		e.timers.arm(timerSettle, e.sched.Config().Settle)
	}
	e.timers.arm(timerStall, t.Network.StallTimeout)
	e.timers.arm(timerBuffer, t.Device.BufferCheckInterval)
	e.timers.arm(timerPoll, t.Network.PollInterval)

	url := e.src.StreamURL(pos, string(t.Device.Class), t.Device.StreamHints, e.clock.Now())
	if err := e.prim.SetSource(url); err != nil {
		e.slog().Warn().Err(err).Msg("audio primitive rejected source")
		return
	}
	s.Source = url
	e.prim.SetPlaybackRate(1)
	e.slog().Info().
		Str(xglog.FieldEvent, "transport.built").
		Str("kind", kind.String()).
		Str(xglog.FieldTrackID, s.TrackID).
		Float64(xglog.FieldPosition, pos).
		Msg("audio transport attached")
	e.startPlay()
}

func (e *Engine) startPlay() {
	s := e.sess
	if s == nil || s.Source == "" {
		return
	}
	epoch, source, ctx := e.epoch, s.Source, e.epochCtx
	e.goFn(func() {
		err := e.prim.Play(ctx)
		e.post(playResult{epoch: epoch, source: source, err: err})
	})
}

func (e *Engine) onPlayResult(r playResult) {
	s := e.sess
	if s == nil || r.epoch != e.epoch || r.source != s.Source {
		metrics.RecordStaleResult("play")
		return
	}
	switch {
	case r.err == nil:
	case errors.Is(r.err, hostaudio.ErrAutoplayBlocked):
		s.NeedsInteraction = true
		e.timers.cancel(timerStall)
		e.slog().Info().Str(xglog.FieldEvent, "autoplay.blocked").Msg("playback requires a user gesture")
	case errors.Is(r.err, context.Canceled):
	default:
		e.slog().Warn().Err(r.err).Msg("play rejected")
		e.fault(connection.EvMediaError, "play_rejected")
	}
}

func (e *Engine) onPoll(r fetchResult) {
	s := e.sess
	e.timers.arm(timerPoll, e.tuning.Network.PollInterval)
	if r.err != nil {
		e.slog().Warn().Err(r.err).Str(xglog.FieldEvent, "nowplaying.fetch_failed").Msg("now-playing poll failed")
		return
	}

	now := e.clock.Now()
	snap := r.snap
	e.applyMeta(snap)
	id := snap.TrackID()
	connected := e.conn.State() == connection.Connected

	if ch, changed := s.Track.Observe(id, s.Playing && connected); changed {
		s.TrackID = id
		s.Model.Duration = snap.Duration
		s.Model.ResetAnchor(0, now)
		e.publishTrackChange(ch.Previous, ch.Current, snap)
		if ch.ArmGrace {
			s.graceToken = s.Track.Token()
			e.timers.arm(timerGrace, e.tuning.Device.TrackChangeGrace)
		}
	} else {
		if id != "" {
			s.TrackID = id
		}
		s.Model.Duration = snap.Duration
		if connected && !s.Track.Pending() {
			e.correct(position.Clamp(snap.Position(), snap.Duration), now)
		}
	}
	s.LastServerSync = now
	e.saveResume()
	e.forceStatus = true
}

func (e *Engine) heartbeat() {
	s := e.sess
	if s == nil {
		return
	}
	e.timers.arm(timerHeartbeat, e.cfg.HeartbeatInterval)
	sessionID, connID, epoch, ctx := s.ID, s.ConnectionID, e.epoch, e.epochCtx
	hints := e.tuning.Device.NowPlayingHints
	e.goFn(func() {
		hb, err := e.src.Heartbeat(ctx, connID, hints)
		e.post(heartbeatResult{sessionID: sessionID, epoch: epoch, hb: hb, err: err})
	})
}

func (e *Engine) onHeartbeat(r heartbeatResult) {
	s := e.sess
	if s == nil || r.sessionID != s.ID {
		metrics.RecordStaleResult("heartbeat")
		return
	}
	if r.err != nil {
		if !errors.Is(r.err, context.Canceled) {
			e.slog().Warn().Err(r.err).Str(xglog.FieldEvent, "heartbeat.failed").Msg("heartbeat failed")
		}
		return
	}
	if r.hb.ActiveListeners != nil {
		s.ActiveListeners = *r.hb.ActiveListeners
	}
	pos, ok := r.hb.Position()
	if !ok || r.epoch != e.epoch || e.conn.State() != connection.Connected || s.Track.Pending() {
		return
	}
	now := e.clock.Now()
	e.correct(position.Clamp(pos, s.Model.Duration), now)
	s.LastServerSync = now
}

func (e *Engine) onNetwork(class profile.NetworkClass) {
	class = profile.ParseNetworkClass(string(class))
	if class == e.tuning.Network.Class {
		return
	}
	prev := e.tuning.Network.Class
	e.tuning = e.tuning.WithNetwork(class)
	e.slog().Info().
		Str(xglog.FieldEvent, "network.changed").
		Str("previous", string(prev)).
		Str(xglog.FieldNetworkClass, string(class)).
		Msg("network profile updated")
}
