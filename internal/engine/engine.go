// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package engine implements the playback synchronization engine. A single
// event loop owns the session, the connection state machine, the reconnect
// scheduler, the buffer ladder and every timer; collaborators talk to it only
// through messages.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/radiosync/internal/buffer"
	"github.com/ManuGH/radiosync/internal/bus"
	"github.com/ManuGH/radiosync/internal/clock"
	"github.com/ManuGH/radiosync/internal/connection"
	"github.com/ManuGH/radiosync/internal/hostaudio"
	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/nowplaying"
	"github.com/ManuGH/radiosync/internal/position"
	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/ManuGH/radiosync/internal/ratelimit"
	"github.com/ManuGH/radiosync/internal/reconnect"
	"github.com/ManuGH/radiosync/internal/resume"
	"github.com/ManuGH/radiosync/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrStopped is returned by commands issued after Run has returned.
	ErrStopped = errors.New("engine: stopped")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("engine: already running")
)

// Source is the server side of the stream: now-playing, heartbeat and the
// audio transport URL.
type Source interface {
	NowPlaying(ctx context.Context, hints map[string]string) (nowplaying.Snapshot, error)
	Heartbeat(ctx context.Context, connectionID string, hints map[string]string) (nowplaying.Heartbeat, error)
	StreamURL(position float64, platform string, hints map[string]string, t time.Time) string
}

var _ Source = (*nowplaying.Client)(nil)

// Config tunes the engine. Zero values fall back to DefaultConfig.
type Config struct {
	Device    profile.DeviceClass
	Network   profile.NetworkClass
	Reconnect reconnect.Config

	// HealthyReset is how long playback must run uninterrupted before the
	// reconnect and reload budgets are restored.
	HealthyReset      time.Duration
	HeartbeatInterval time.Duration
	// FaultMinInterval coalesces repeated media faults with the same code.
	FaultMinInterval time.Duration
}

// DefaultConfig returns production defaults for a desktop client on an
// unknown network.
func DefaultConfig() Config {
	return Config{
		Device:            profile.DeviceDesktop,
		Network:           profile.NetworkUnknown,
		Reconnect:         reconnect.DefaultConfig(),
		HealthyReset:      30 * time.Second,
		HeartbeatInterval: 15 * time.Second,
		FaultMinInterval:  ratelimit.DefaultMinInterval,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Device == "" {
		c.Device = def.Device
	}
	if c.Network == "" {
		c.Network = def.Network
	}
	if c.HealthyReset <= 0 {
		c.HealthyReset = def.HealthyReset
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.FaultMinInterval <= 0 {
		c.FaultMinInterval = def.FaultMinInterval
	}
	return c
}

// Deps are the engine's collaborators. Keeper, Bus and Network are optional.
type Deps struct {
	Source    Source
	Primitive hostaudio.Primitive
	Keeper    *resume.Keeper
	Bus       bus.Bus
	Clock     clock.Clock
	Network   *profile.Monitor
	// Go runs asynchronous work. Defaults to a new goroutine per call.
	Go func(func())
	// Jitter overrides the reconnect jitter source.
	Jitter func() float64
}

// Engine is the sole writer of playback session state.
type Engine struct {
	cfg    Config
	src    Source
	prim   hostaudio.Primitive
	keeper *resume.Keeper
	bus    bus.Bus
	clock  clock.Clock
	netMon *profile.Monitor
	goFn   func(func())

	tuning    profile.Tuning
	conn      *connection.Machine
	sched     *reconnect.Scheduler
	corrector *position.Corrector
	buffer    *buffer.Monitor
	faults    *ratelimit.Coalescer
	timers    *timerSet

	logger zerolog.Logger
	tracer trace.Tracer

	inbox   chan any
	done    chan struct{}
	running atomic.Bool

	// Loop-owned state.
	runCtx       context.Context
	epochCtx     context.Context
	epochCancel  context.CancelFunc
	epoch        uint64
	sess         *Session
	volume       float64
	muted        bool
	message      string
	terminalSent bool
	forceStatus  bool

	statusMu sync.RWMutex
	status   Status
	model    position.Model
	live     bool
}

// New builds an engine. Run must be called to start it.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Source == nil {
		return nil, errors.New("engine: source is required")
	}
	if deps.Primitive == nil {
		return nil, errors.New("engine: primitive is required")
	}
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Go == nil {
		deps.Go = func(f func()) { go f() }
	}
	if deps.Network != nil {
		cfg.Network = deps.Network.Current()
	}

	tuning := profile.Resolve(cfg.Device, cfg.Network)
	e := &Engine{
		cfg:       cfg,
		src:       deps.Source,
		prim:      deps.Primitive,
		keeper:    deps.Keeper,
		bus:       deps.Bus,
		clock:     deps.Clock,
		netMon:    deps.Network,
		goFn:      deps.Go,
		tuning:    tuning,
		conn:      connection.NewMachine(),
		sched:     reconnect.New(cfg.Reconnect),
		corrector: position.NewCorrector(policyFor(tuning.Device)),
		buffer:    buffer.New(tuning.Device),
		faults:    ratelimit.NewCoalescer(cfg.FaultMinInterval, deps.Clock),
		logger:    xglog.WithComponent("engine"),
		tracer:    telemetry.Tracer("radiosync/engine"),
		inbox:     make(chan any, 256),
		done:      make(chan struct{}),
		runCtx:    context.Background(),
		volume:    1,
	}
	if deps.Jitter != nil {
		e.sched.SetJitterSource(deps.Jitter)
	}
	e.timers = newTimerSet(e.clock, e.post)
	e.epochCtx, e.epochCancel = context.WithCancel(e.runCtx)
	e.refreshStatus()
	return e, nil
}

func policyFor(d profile.Device) position.Policy {
	return position.Policy{
		Tolerance:        d.DriftTolerance,
		HardThreshold:    d.HardDriftThreshold(),
		CorrectionFactor: d.CorrectionFactor,
		MaxReconnectGap:  d.MaxReconnectGap,
	}
}

// Run drives the event loop until ctx is done. The session's resume state is
// saved and the transport torn down before it returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(e.done)

	e.runCtx = ctx
	e.epochCancel()
	e.epochCtx, e.epochCancel = context.WithCancel(ctx)

	var netCh <-chan profile.NetworkClass
	if e.netMon != nil {
		netCh = e.netMon.Subscribe()
	}
	events := e.prim.Events()

	e.logger.Info().
		Str(xglog.FieldDeviceClass, string(e.tuning.Device.Class)).
		Str(xglog.FieldNetworkClass, string(e.tuning.Network.Class)).
		Msg("engine started")

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case m := <-e.inbox:
			e.dispatch(m, events, netCh)
		case ev := <-events:
			e.onMedia(ev)
		case class := <-netCh:
			e.onNetwork(class)
		}
		e.refreshStatus()
	}
}

func (e *Engine) shutdown() {
	e.saveResume()
	e.teardownTransport()
	e.timers.cancelAll()
	e.epochCancel()
	e.logger.Info().Msg("engine stopped")
}

func (e *Engine) dispatch(m any, events <-chan hostaudio.Event, netCh <-chan profile.NetworkClass) {
	switch m := m.(type) {
	case syncRequest:
		e.drain(events, netCh)
		e.refreshStatus()
		m.reply <- nil
	case command:
		err := m.run(e)
		e.refreshStatus()
		m.reply <- err
	case timerFired:
		if e.timers.claim(m) {
			e.onTimer(m.kind)
		}
	case fetchResult:
		e.onFetch(m)
	case heartbeatResult:
		e.onHeartbeat(m)
	case playResult:
		e.onPlayResult(m)
	}
}

// drain handles everything already queued, including work queued while
// draining, so callers observe a quiescent engine.
func (e *Engine) drain(events <-chan hostaudio.Event, netCh <-chan profile.NetworkClass) {
	for {
		select {
		case m := <-e.inbox:
			e.dispatch(m, events, netCh)
		case ev := <-events:
			e.onMedia(ev)
		case class := <-netCh:
			e.onNetwork(class)
		default:
			return
		}
		e.refreshStatus()
	}
}

type command struct {
	run   func(*Engine) error
	reply chan error
}

type syncRequest struct {
	reply chan error
}

// post queues an asynchronous completion. It never blocks once Run has returned.
func (e *Engine) post(m any) {
	select {
	case e.inbox <- m:
	case <-e.done:
	}
}

func (e *Engine) request(ctx context.Context, m any, reply chan error) error {
	select {
	case e.inbox <- m:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) do(ctx context.Context, fn func(*Engine) error) error {
	reply := make(chan error, 1)
	return e.request(ctx, command{run: fn, reply: reply}, reply)
}

// Sync returns once every message queued before and during the call has been
// handled.
func (e *Engine) Sync(ctx context.Context) error {
	reply := make(chan error, 1)
	return e.request(ctx, syncRequest{reply: reply}, reply)
}

// Connect starts a session. It is a no-op while one is active, except that a
// session waiting for a user gesture treats it as that gesture.
func (e *Engine) Connect(ctx context.Context) error {
	return e.do(ctx, func(e *Engine) error {
		if e.sess != nil {
			if e.sess.NeedsInteraction {
				e.interact()
			}
			return nil
		}
		e.connect()
		return nil
	})
}

// Disconnect stops the session and returns to Disconnected.
func (e *Engine) Disconnect(ctx context.Context) error {
	return e.do(ctx, func(e *Engine) error {
		e.disconnect()
		return nil
	})
}

// Interact reports a qualifying user gesture. A session blocked on autoplay
// resumes; without a session it connects.
func (e *Engine) Interact(ctx context.Context) error {
	return e.do(ctx, func(e *Engine) error {
		if e.sess == nil {
			e.connect()
			return nil
		}
		e.interact()
		return nil
	})
}

// SetVolume applies and persists the volume, clamped to [0,1].
func (e *Engine) SetVolume(ctx context.Context, v float64) error {
	return e.do(ctx, func(e *Engine) error {
		e.volume = clampVolume(v)
		e.prim.SetVolume(e.volume)
		if e.keeper != nil {
			e.keeper.SaveVolume(context.WithoutCancel(e.runCtx), e.volume)
		}
		return nil
	})
}

// SetMuted applies and persists the mute flag.
func (e *Engine) SetMuted(ctx context.Context, muted bool) error {
	return e.do(ctx, func(e *Engine) error {
		e.muted = muted
		e.prim.SetMuted(muted)
		if e.keeper != nil {
			e.keeper.SaveMuted(context.WithoutCancel(e.runCtx), muted)
		}
		return nil
	})
}

// SetNetwork applies a network class without restarting the session.
func (e *Engine) SetNetwork(ctx context.Context, class profile.NetworkClass) error {
	return e.do(ctx, func(e *Engine) error {
		e.onNetwork(class)
		return nil
	})
}

// Status returns the latest snapshot with the position estimated at call time.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	st, m, live := e.status, e.model, e.live
	e.statusMu.RUnlock()
	if live {
		st.Position = m.Estimate(e.clock.Now())
	}
	return st
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

func (e *Engine) refreshStatus() {
	st := Status{
		State:             e.conn.State(),
		ReconnectAttempts: e.sched.Attempts(),
		DeviceClass:       string(e.tuning.Device.Class),
		NetworkClass:      string(e.tuning.Network.Class),
		Volume:            e.volume,
		Muted:             e.muted,
		Message:           e.message,
	}
	var model position.Model
	s := e.sess
	if s != nil {
		st.SessionID = s.ID
		st.ConnectionID = s.ConnectionID
		st.TrackID = s.TrackID
		st.Title = s.Title
		st.Artist = s.Artist
		st.Duration = s.Model.Duration
		st.NeedsInteraction = s.NeedsInteraction
		st.ActiveListeners = s.ActiveListeners
		model = s.Model
	}

	e.statusMu.Lock()
	prev := e.status
	prev.UpdatedAt = time.Time{}
	changed := prev != st || e.forceStatus
	if changed {
		st.UpdatedAt = e.clock.Now()
	} else {
		st.UpdatedAt = e.status.UpdatedAt
	}
	e.status, e.model, e.live = st, model, s != nil
	e.statusMu.Unlock()

	e.forceStatus = false
	if changed && e.bus != nil {
		e.bus.Offer(bus.TopicStatus, e.Status())
	}
}

func (e *Engine) offer(topic string, msg bus.Message) {
	if e.bus != nil {
		e.bus.Offer(topic, msg)
	}
}
