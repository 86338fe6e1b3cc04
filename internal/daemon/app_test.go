// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/radiosync/internal/config"
	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// signal.Notify starts a process-wide loop that never exits.
var ignoreSignalLoop = goleak.IgnoreAnyFunction("os/signal.loop")

type fakeRunner struct {
	started chan struct{}
	err     error
	onStart func()
}

func newFakeRunner(err error) *fakeRunner {
	return &fakeRunner{started: make(chan struct{}), err: err}
}

func (f *fakeRunner) Run(ctx context.Context) error {
	if f.onStart != nil {
		f.onStart()
	}
	close(f.started)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return nil
}

func TestNewApp_RequiresComponents(t *testing.T) {
	_, err := NewApp(Deps{API: newFakeRunner(nil)})
	require.ErrorIs(t, err, ErrMissingEngine)

	_, err = NewApp(Deps{Engine: newFakeRunner(nil)})
	require.ErrorIs(t, err, ErrMissingAPI)
}

func TestApp_RunsUntilCancelledAndRunsHooksLIFO(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), ignoreSignalLoop)

	eng, srv := newFakeRunner(nil), newFakeRunner(nil)
	app, err := NewApp(Deps{Engine: eng, API: srv})
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		app.RegisterShutdownHook(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	<-eng.started
	<-srv.started
	require.ErrorIs(t, app.Run(ctx), ErrAlreadyStarted)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestApp_ComponentFailureStopsEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), ignoreSignalLoop)

	boom := errors.New("listen tcp: address already in use")
	app, err := NewApp(Deps{Engine: newFakeRunner(nil), API: newFakeRunner(boom)})
	require.NoError(t, err)

	hookErr := errors.New("close failed")
	app.RegisterShutdownHook("store", func(context.Context) error { return hookErr })

	err = app.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, hookErr)
}

func TestApp_ReloadAppliesNetworkClass(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), ignoreSignalLoop)

	path := filepath.Join(t.TempDir(), "radiosync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network:\n  class: 4g\n"), 0o600))
	loader := config.NewLoader(path, "v")
	cfg, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewConfigHolder(cfg, loader, path)

	monitor := profile.NewMonitor(profile.Network4G)
	eng := newFakeRunner(nil)
	app, err := NewApp(Deps{Engine: eng, API: newFakeRunner(nil), Config: holder, Network: monitor})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	<-eng.started

	require.NoError(t, os.WriteFile(path, []byte("network:\n  class: 2g\n"), 0o600))
	require.NoError(t, holder.Reload(ctx))

	require.Eventually(t, func() bool {
		return monitor.Current() == profile.Network2G
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestApp_ReloadWhileComponentsStartIsApplied(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), ignoreSignalLoop)

	path := filepath.Join(t.TempDir(), "radiosync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network:\n  class: 4g\n"), 0o600))
	loader := config.NewLoader(path, "v")
	cfg, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewConfigHolder(cfg, loader, path)

	monitor := profile.NewMonitor(profile.Network4G)
	eng := newFakeRunner(nil)
	// Both reloads land before the apply loop has been scheduled; the second
	// finds the listener channel full.
	eng.onStart = func() {
		for _, class := range []string{"3g", "2g"} {
			assert.NoError(t, os.WriteFile(path, []byte("network:\n  class: "+class+"\n"), 0o600))
			assert.NoError(t, holder.Reload(context.Background()))
		}
	}
	app, err := NewApp(Deps{Engine: eng, API: newFakeRunner(nil), Config: holder, Network: monitor})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	<-eng.started

	require.Eventually(t, func() bool {
		return monitor.Current() == profile.Network2G
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestEngineConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Device.Class = "ios"
	cfg.Network.Class = "3g"
	cfg.Reconnect.MaxAttempts = 3
	cfg.Heartbeat.Interval = 20 * time.Second

	ec := EngineConfig(cfg)
	assert.Equal(t, profile.DeviceIOS, ec.Device)
	assert.Equal(t, profile.Network3G, ec.Network)
	assert.Equal(t, 3, ec.Reconnect.MaxAttempts)
	assert.Equal(t, 30*time.Second, ec.Reconnect.MaxDelay)
	assert.Equal(t, 20*time.Second, ec.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, ec.FaultMinInterval)
}
