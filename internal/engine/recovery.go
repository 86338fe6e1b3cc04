// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"errors"

	"github.com/ManuGH/radiosync/internal/buffer"
	"github.com/ManuGH/radiosync/internal/connection"
	"github.com/ManuGH/radiosync/internal/hostaudio"
	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/metrics"
	"github.com/ManuGH/radiosync/internal/position"
	"github.com/ManuGH/radiosync/internal/reconnect"
	"github.com/ManuGH/radiosync/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// trimKeepSeconds of already played media survive a quota trim.
const trimKeepSeconds = 10

func (e *Engine) onMedia(ev hostaudio.Event) {
	s := e.sess
	if s == nil || s.Source == "" || ev.Source != s.Source {
		if ev.Kind != hostaudio.EventTimeUpdate {
			metrics.RecordStaleResult("media_event")
		}
		return
	}

	switch ev.Kind {
	case hostaudio.EventPlaying:
		e.onPlaying()
	case hostaudio.EventWaiting:
		if !s.NeedsInteraction {
			e.timers.armIfIdle(timerStall, e.tuning.Network.StallTimeout)
		}
		e.timers.cancel(timerHealthy)
	case hostaudio.EventStalled:
		// The old transport keeps stalling until the pending attempt replaces it.
		if e.timers.pending(timerReconnect) {
			return
		}
		e.applyDecision(e.buffer.OnStall(e.clock.Now()))
	case hostaudio.EventError:
		e.onMediaError(ev.Err)
	case hostaudio.EventEnded:
		if s.Track.Ended() {
			e.timers.cancel(timerGrace)
			e.reload("track_ended")
			return
		}
		e.fault(connection.EvNoSource, "ended")
	case hostaudio.EventPause:
		if s.SelfPaused || !s.Playing || s.NeedsInteraction {
			return
		}
		e.fault(connection.EvUnexpectedPause, "unexpected_pause")
	}
}

func (e *Engine) onPlaying() {
	s := e.sess
	s.NeedsInteraction = false
	s.SelfPaused = false
	e.timers.cancel(timerStall)

	if e.conn.Can(connection.EvMediaPlaying) {
		e.fire(connection.EvMediaPlaying)
	}
	// An attempt settles after it has played for the settle period.
	if e.timers.pending(timerSettle) {
		e.timers.arm(timerSettle, e.sched.Config().Settle)
	}
	e.timers.armIfIdle(timerHealthy, e.cfg.HealthyReset)
	e.timers.armIfIdle(timerBuffer, e.tuning.Device.BufferCheckInterval)
}

func (e *Engine) onMediaError(merr *hostaudio.MediaError) {
	s := e.sess
	var code hostaudio.MediaErrorCode
	if merr != nil {
		code = merr.Code
	}

	if code == hostaudio.MediaErrQuotaExceeded {
		outcome := "ignored"
		if tr, ok := e.prim.(hostaudio.Trimmer); ok {
			before := max(e.prim.CurrentTime()-trimKeepSeconds, 0)
			if err := tr.TrimPlayed(before); err != nil {
				e.slog().Warn().Err(err).Msg("trimming played media failed")
			} else {
				outcome = "trimmed"
			}
		}
		metrics.RecordMediaFault(code.String(), outcome)
		return
	}

	s.ConsecutiveMediaErrors++
	if !e.faults.Allow(code.String()) {
		metrics.RecordMediaFault(code.String(), "coalesced")
		e.slog().Debug().Str("code", code.String()).Msg("media fault coalesced")
		return
	}
	metrics.RecordMediaFault(code.String(), "reconnect")
	e.fault(connection.EvMediaError, "media_"+code.String())
}

// fault asks the scheduler for a reconnection attempt.
func (e *Engine) fault(ev connection.Event, reason string) {
	s := e.sess
	if s == nil {
		return
	}
	inFlight := e.sched.InFlight()
	if !e.conn.CanReconnect(s.Playing, inFlight) {
		refusal := "inactive"
		switch {
		case !s.Playing:
			refusal = "not_playing"
		case inFlight:
			refusal = "in_flight"
		}
		metrics.RecordReconnectRefused(refusal)
		e.slog().Debug().
			Str(xglog.FieldReason, reason).
			Str("refusal", refusal).
			Str("state", string(e.conn.State())).
			Msg("reconnection not permitted")
		return
	}

	now := e.clock.Now()
	attempt, err := e.sched.Schedule(s.Playing, e.factors())
	switch {
	case errors.Is(err, reconnect.ErrExhausted):
		e.terminal(reason)
		return
	case err != nil:
		e.slog().Debug().Err(err).Str(xglog.FieldReason, reason).Msg("reconnection refused")
		return
	}

	if s.Gap.DisconnectedAt.IsZero() {
		s.Gap = position.Gap{DisconnectedAt: now, LastKnownPosition: s.Model.Estimate(now)}
	}
	e.fire(ev)
	e.timers.cancel(timerStall, timerBuffer, timerHealthy, timerResume, timerGrace)
	e.timers.arm(timerReconnect, attempt.Delay)

	metrics.RecordReconnectScheduled(reason, attempt.Delay)
	_, span := e.tracer.Start(e.epochCtx, "engine.reconnect.schedule",
		trace.WithAttributes(telemetry.ReconnectAttributes(attempt.Number, reason, attempt.Delay.Milliseconds())...))
	span.End()
	e.slog().Warn().
		Str(xglog.FieldEvent, "reconnect.scheduled").
		Str(xglog.FieldReason, reason).
		Int(xglog.FieldAttempt, attempt.Number).
		Dur(xglog.FieldDelay, attempt.Delay).
		Msg("reconnection scheduled")
}

func (e *Engine) factors() reconnect.Factors {
	return reconnect.Factors{
		BaseDelay:         e.tuning.Network.ReconnectBaseDelay,
		DeviceMultiplier:  e.tuning.Device.BackoffMultiplier,
		NetworkMultiplier: e.tuning.Network.BackoffMultiplier,
	}
}

// reload swaps the transport for a fresh one at a newly fetched position
// without spending a reconnection attempt.
func (e *Engine) reload(reason string) {
	if e.timers.pending(timerReconnect) {
		e.slog().Debug().Str(xglog.FieldReason, reason).Msg("reload skipped, reconnection pending")
		return
	}
	e.slog().Info().
		Str(xglog.FieldEvent, "transport.reload").
		Str(xglog.FieldReason, reason).
		Msg("reloading audio transport")
	e.bumpEpoch()
	e.fetch(fetchReload)
}

func (e *Engine) applyDecision(d buffer.Decision) {
	s := e.sess
	switch d.Action {
	case buffer.ActionRestoreRate, buffer.ActionShadeRate:
		e.prim.SetPlaybackRate(d.Rate)
	case buffer.ActionPauseResume:
		s.SelfPaused = true
		e.prim.Pause()
		e.timers.arm(timerResume, d.Pause)
	case buffer.ActionNudge:
		e.prim.Seek(e.prim.CurrentTime() + buffer.NudgeSeconds)
		e.startPlay()
	case buffer.ActionReload:
		e.reload(d.Reason)
	case buffer.ActionEscalate:
		ev := connection.EvMediaStalledTimeout
		if d.Reason == "no_source" {
			ev = connection.EvNoSource
		}
		e.fault(ev, d.Reason)
	}
}

func (e *Engine) onTimer(kind timerKind) {
	s := e.sess
	if s == nil {
		return
	}
	switch kind {
	case timerPoll:
		e.fetch(fetchPoll)
	case timerHeartbeat:
		e.heartbeat()
	case timerBuffer:
		e.checkBuffer()
	case timerStall:
		if !s.NeedsInteraction {
			e.fault(connection.EvMediaStalledTimeout, "stall_timeout")
		}
	case timerHealthy:
		e.onHealthy()
	case timerReconnect:
		e.teardownTransport()
		e.bumpEpoch()
		e.fetch(fetchReconnect)
	case timerSettle:
		e.sched.Release()
	case timerGrace:
		if s.Track.Fire(s.graceToken) {
			e.reload("track_change")
		}
	case timerResume:
		s.SelfPaused = false
		e.startPlay()
	}
}

func (e *Engine) checkBuffer() {
	s := e.sess
	interval := e.tuning.Device.BufferCheckInterval
	if e.conn.State() != connection.Connected || s.SelfPaused || s.NeedsInteraction {
		e.timers.arm(timerBuffer, interval)
		return
	}
	cur := e.prim.CurrentTime()
	sample := buffer.Sample{
		Ahead:     hostaudio.BufferedAhead(e.prim.Buffered(), cur),
		HasSource: e.prim.HasSource(),
		Paused:    e.prim.Paused(),
		CanPlay:   e.prim.ReadyState() >= hostaudio.HaveFutureData,
	}
	metrics.SetBufferAhead(sample.Ahead)
	e.timers.arm(timerBuffer, interval)
	e.applyDecision(e.buffer.Evaluate(sample, e.clock.Now()))
}

func (e *Engine) onHealthy() {
	s := e.sess
	if e.conn.State() != connection.Connected {
		return
	}
	if attempts := e.sched.Attempts(); attempts > 0 || e.buffer.Reloads() > 0 {
		e.slog().Info().
			Str(xglog.FieldEvent, "reconnect.budget_reset").
			Int(xglog.FieldAttempt, attempts).
			Msg("playback healthy, recovery budgets restored")
	}
	e.sched.Reset()
	e.timers.cancel(timerSettle)
	e.buffer.ResetReloads()
	s.Gap = position.Gap{}
	s.ConsecutiveMediaErrors = 0
}
