// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/radiosync/internal/bus"
	"github.com/ManuGH/radiosync/internal/clock"
	"github.com/ManuGH/radiosync/internal/hostaudio"
	"github.com/ManuGH/radiosync/internal/hostaudio/fake"
	"github.com/ManuGH/radiosync/internal/nowplaying"
	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/stretchr/testify/require"
)

var epoch0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type response struct {
	snap nowplaying.Snapshot
	err  error
}

type fakeSource struct {
	mu        sync.Mutex
	snap      nowplaying.Snapshot
	err       error
	queue     []response
	hb        nowplaying.Heartbeat
	positions []float64
	platforms []string
	fetches   int
	beats     int
}

func (f *fakeSource) NowPlaying(context.Context, map[string]string) (nowplaying.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if len(f.queue) > 0 {
		r := f.queue[0]
		f.queue = f.queue[1:]
		return r.snap, r.err
	}
	return f.snap, f.err
}

func (f *fakeSource) Heartbeat(context.Context, string, map[string]string) (nowplaying.Heartbeat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beats++
	return f.hb, nil
}

func (f *fakeSource) StreamURL(pos float64, platform string, _ map[string]string, _ time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions = append(f.positions, pos)
	f.platforms = append(f.platforms, platform)
	return fmt.Sprintf("http://radio.test/stream?position=%.3f&n=%d", pos, len(f.positions))
}

func (f *fakeSource) set(snap nowplaying.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap, f.err = snap, err
}

func (f *fakeSource) enqueue(rs ...response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, rs...)
}

func (f *fakeSource) setHeartbeat(hb nowplaying.Heartbeat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hb = hb
}

func (f *fakeSource) builds() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.positions...)
}

// queueRunner defers asynchronous work until the test releases it.
type queueRunner struct {
	mu sync.Mutex
	q  []func()
}

func (r *queueRunner) Go(f func()) {
	r.mu.Lock()
	r.q = append(r.q, f)
	r.mu.Unlock()
}

func (r *queueRunner) runAll() bool {
	r.mu.Lock()
	q := r.q
	r.q = nil
	r.mu.Unlock()
	for _, f := range q {
		f()
	}
	return len(q) > 0
}

type harness struct {
	t      *testing.T
	clk    *clock.Fake
	src    *fakeSource
	prim   *fake.Primitive
	bus    *bus.MemoryBus
	runner *queueRunner
	eng    *Engine
	cancel context.CancelFunc
	done   chan error
}

func snapshot(path string, pos, duration float64) nowplaying.Snapshot {
	return nowplaying.Snapshot{
		Title:            "Title " + path,
		Artist:           "Artist",
		Path:             path,
		PlaybackPosition: pos,
		Duration:         duration,
	}
}

func newHarness(t *testing.T, device profile.DeviceClass, configure ...func(*harness, *Config, *Deps)) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		clk:    clock.NewFake(epoch0),
		src:    &fakeSource{snap: snapshot("/a.mp3", 120, 200)},
		prim:   fake.New(),
		bus:    bus.NewMemoryBusWithBuffer(64),
		runner: &queueRunner{},
		done:   make(chan error, 1),
	}
	cfg := DefaultConfig()
	cfg.Device = device
	deps := Deps{
		Source:    h.src,
		Primitive: h.prim,
		Bus:       h.bus,
		Clock:     h.clk,
		Go:        h.runner.Go,
		Jitter:    func() float64 { return 0 },
	}
	for _, fn := range configure {
		fn(h, &cfg, &deps)
	}
	eng, err := New(cfg, deps)
	require.NoError(t, err)
	h.eng = eng

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- eng.Run(ctx) }()
	return h
}

func (h *harness) stop() {
	h.t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		require.NoError(h.t, err)
	case <-time.After(5 * time.Second):
		h.t.Fatal("engine did not stop")
	}
}

// settle runs deferred work and drains the engine until nothing is left.
func (h *harness) settle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 100; i++ {
		require.NoError(h.t, h.eng.Sync(ctx))
		if !h.runner.runAll() {
			return
		}
	}
	h.t.Fatal("engine did not settle")
}

// advance steps the clock from deadline to deadline, settling after each so
// every timer observes the state its predecessors left behind.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	target := h.clk.Now().Add(d)
	for {
		next, ok := h.clk.NextDeadline()
		if !ok || next.After(target) {
			h.clk.Advance(target.Sub(h.clk.Now()))
			h.settle()
			return
		}
		h.clk.Advance(next.Sub(h.clk.Now()))
		h.settle()
	}
}

func (h *harness) connect() {
	h.t.Helper()
	require.NoError(h.t, h.eng.Connect(context.Background()))
	h.settle()
}

// play reports the current transport as playing with a healthy buffer.
func (h *harness) play() {
	h.t.Helper()
	h.prim.SetBuffer(0, 30, hostaudio.HaveEnoughData)
	h.prim.Emit(hostaudio.EventPlaying)
	h.settle()
}

func (h *harness) emit(kind hostaudio.EventKind) {
	h.t.Helper()
	h.prim.Emit(kind)
	h.settle()
}

func (h *harness) subscribe(topic string) bus.Subscriber {
	h.t.Helper()
	sub, err := h.bus.Subscribe(context.Background(), topic)
	require.NoError(h.t, err)
	return sub
}

func collect(sub bus.Subscriber) []bus.Message {
	var out []bus.Message
	for {
		select {
		case m := <-sub.C():
			out = append(out, m)
		default:
			return out
		}
	}
}
