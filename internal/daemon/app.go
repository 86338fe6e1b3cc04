// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the runtime lifecycle of radiosync: it builds the
// components from configuration, runs them together and tears them down.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/radiosync/internal/config"
	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// App runs the engine, the API server and the config watcher under one errgroup.
type App struct {
	deps         Deps
	logger       zerolog.Logger
	reloadSignal os.Signal

	mu      sync.Mutex
	started bool
	hooks   []namedHook
}

// NewApp validates deps and returns an App.
func NewApp(deps Deps) (*App, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	logger := deps.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = xglog.WithComponent("daemon")
	}
	return &App{
		deps:         deps,
		logger:       logger,
		reloadSignal: syscall.SIGHUP,
	}, nil
}

// RegisterShutdownHook registers a cleanup function to be called after Run's
// components have stopped.
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, namedHook{name: name, hook: hook})
	a.logger.Debug().Str("hook", name).Msg("registered shutdown hook")
}

// Run blocks until ctx is cancelled or a component fails, then runs the
// shutdown hooks.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.mu.Unlock()

	a.logger.Info().Str("event", "daemon.start").Msg("starting radiosync")

	// Subscribe before any component runs so no reload is missed or compared
	// against an already swapped config.
	var (
		baseline config.AppConfig
		updates  chan config.AppConfig
	)
	holder := a.deps.Config
	if holder != nil {
		updates = make(chan config.AppConfig, 1)
		baseline = holder.Subscribe(updates)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.deps.Engine.Run(gctx); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.deps.API.Run(gctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})

	if holder != nil {
		// The watcher is best effort; a missing one only disables hot reload.
		if err := holder.StartWatcher(gctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		} else {
			a.RegisterShutdownHook("config-watcher", func(context.Context) error {
				holder.Stop()
				return nil
			})
		}

		g.Go(func() error {
			a.applyLoop(gctx, holder, baseline, updates)
			return nil
		})
		g.Go(func() error {
			a.signalLoop(gctx, holder)
			return nil
		})
	}

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		a.logger.Error().Err(runErr).Str("event", "daemon.component_failed").Msg("component failed, shutting down")
	} else {
		runErr = nil
		a.logger.Info().Str("event", "daemon.stopping").Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// applyLoop pushes live-applicable settings from each reload into the running
// components. A delivery only signals a change; the holder's current config is
// applied so a delivery skipped on a full channel is still picked up.
func (a *App) applyLoop(ctx context.Context, holder *config.ConfigHolder, current config.AppConfig, updates <-chan config.AppConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			next := holder.Get()
			a.apply(current, next)
			current = next
		}
	}
}

func (a *App) apply(old, next config.AppConfig) {
	if old.Network.Class != next.Network.Class && a.deps.Network != nil {
		class := profile.ParseNetworkClass(next.Network.Class)
		if a.deps.Network.Set(class) {
			a.logger.Info().
				Str("event", "config.network_applied").
				Str(xglog.FieldNetworkClass, string(class)).
				Msg("network class applied to running engine")
		}
	}
	if old.Log.Level != next.Log.Level || old.Log.Service != next.Log.Service {
		xglog.Configure(xglog.Config{
			Level:   next.Log.Level,
			Service: next.Log.Service,
			Version: next.Version,
		})
		a.logger.Info().
			Str("event", "config.log_applied").
			Str("level", next.Log.Level).
			Msg("log configuration applied")
	}
}

func (a *App) signalLoop(ctx context.Context, holder *config.ConfigHolder) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, a.reloadSignal)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			a.logger.Info().Str("event", "config.reload_signal").Msg("reload signal received")
			if err := holder.Reload(ctx); err != nil {
				a.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("signal-triggered reload failed")
			}
		}
	}
}

func (a *App) shutdown(ctx context.Context) error {
	a.mu.Lock()
	hooks := append([]namedHook(nil), a.hooks...)
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(ctx); err != nil {
			a.logger.Error().
				Err(err).
				Str("hook", h.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		a.logger.Debug().
			Str("hook", h.name).
			Dur("duration", time.Since(start)).
			Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	a.logger.Info().Str("event", "daemon.stopped").Msg("radiosync stopped cleanly")
	return nil
}
