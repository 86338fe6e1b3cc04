// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"

	"github.com/ManuGH/radiosync/internal/api"
	"github.com/ManuGH/radiosync/internal/bus"
	"github.com/ManuGH/radiosync/internal/clock"
	"github.com/ManuGH/radiosync/internal/config"
	"github.com/ManuGH/radiosync/internal/engine"
	"github.com/ManuGH/radiosync/internal/hostaudio/httpsink"
	"github.com/ManuGH/radiosync/internal/kvstore"
	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/nowplaying"
	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/ManuGH/radiosync/internal/reconnect"
	"github.com/ManuGH/radiosync/internal/resume"
	"github.com/ManuGH/radiosync/internal/telemetry"
)

// Components exposes what Bootstrap built, mainly for tests.
type Components struct {
	Engine  *engine.Engine
	API     *api.Server
	Bus     *bus.MemoryBus
	Network *profile.Monitor
	Store   kvstore.Store
}

// Bootstrap builds every component from the holder's current config and
// returns an App ready to Run. Resources opened here are released by the
// App's shutdown hooks.
func Bootstrap(ctx context.Context, holder *config.ConfigHolder) (*App, *Components, error) {
	cfg := holder.Get()
	logger := xglog.WithComponent("daemon")

	var hooks []namedHook
	fail := func(err error) (*App, *Components, error) {
		for i := len(hooks) - 1; i >= 0; i-- {
			_ = hooks[i].hook(context.WithoutCancel(ctx))
		}
		return nil, nil, err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fail(fmt.Errorf("telemetry: %w", err))
	}
	hooks = append(hooks, namedHook{"telemetry", tp.Shutdown})

	store, err := kvstore.Open(kvstore.Config{
		Backend:   cfg.Resume.Backend,
		Path:      cfg.Resume.Path,
		RedisAddr: cfg.Resume.RedisAddr,
		RedisDB:   cfg.Resume.RedisDB,
		Prefix:    cfg.Resume.Prefix,
	}, xglog.WithComponent("kvstore"))
	if err != nil {
		return fail(fmt.Errorf("resume store: %w", err))
	}
	hooks = append(hooks, namedHook{"kvstore", func(context.Context) error { return store.Close() }})

	device := cfg.Device.ResolvedClass()
	maxAge := cfg.Resume.MaxAge
	if maxAge == 0 {
		maxAge = profile.DeviceFor(device).ResumeMaxAge
	}
	keeper := resume.NewKeeper(store, clock.Real{}, string(device), maxAge)

	client, err := nowplaying.New(nowplaying.Config{
		BaseURL:          cfg.Server.BaseURL,
		NowPlayingPath:   cfg.Server.NowPlayingPath,
		HeartbeatPath:    cfg.Server.HeartbeatPath,
		StreamPath:       cfg.Server.StreamPath,
		Timeout:          cfg.Server.Timeout,
		BreakerThreshold: cfg.Server.BreakerThreshold,
		BreakerReset:     cfg.Server.BreakerReset,
	})
	if err != nil {
		return fail(fmt.Errorf("now-playing client: %w", err))
	}

	sink := httpsink.New(httpsink.Config{
		ByteRate:     cfg.Sink.ByteRate,
		StartBuffer:  cfg.Sink.StartBuffer,
		StallTimeout: cfg.Sink.StallTimeout,
	})
	hooks = append(hooks, namedHook{"audio-sink", func(context.Context) error { return sink.Close() }})

	monitor := profile.NewMonitor(profile.ParseNetworkClass(cfg.Network.Class))
	events := bus.NewMemoryBusWithBuffer(64)

	eng, err := engine.New(EngineConfig(cfg), engine.Deps{
		Source:    client,
		Primitive: sink,
		Keeper:    keeper,
		Bus:       events,
		Network:   monitor,
	})
	if err != nil {
		return fail(fmt.Errorf("engine: %w", err))
	}

	apiCfg := api.Config{
		Listen:    cfg.API.Listen,
		RateLimit: cfg.API.RateLimit,
		Version:   cfg.Version,
	}
	if cfg.Telemetry.Enabled {
		apiCfg.TracingService = cfg.Log.Service
	}
	srv := api.New(apiCfg, eng, events)

	app, err := NewApp(Deps{
		Logger:  logger,
		Engine:  eng,
		API:     srv,
		Config:  holder,
		Network: monitor,
	})
	if err != nil {
		return fail(err)
	}
	for _, h := range hooks {
		app.RegisterShutdownHook(h.name, h.hook)
	}

	logger.Info().
		Str("event", "daemon.bootstrapped").
		Str(xglog.FieldDeviceClass, string(device)).
		Str(xglog.FieldNetworkClass, string(monitor.Current())).
		Str("resume_backend", cfg.Resume.Backend).
		Str("listen", cfg.API.Listen).
		Msg("components ready")

	return app, &Components{
		Engine:  eng,
		API:     srv,
		Bus:     events,
		Network: monitor,
		Store:   store,
	}, nil
}

// EngineConfig maps the daemon configuration onto the engine's.
func EngineConfig(cfg config.AppConfig) engine.Config {
	ec := engine.DefaultConfig()
	ec.Device = cfg.Device.ResolvedClass()
	ec.Network = profile.ParseNetworkClass(cfg.Network.Class)
	ec.Reconnect = reconnect.Config{
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		MaxDelay:    cfg.Reconnect.MaxDelay,
		Growth:      cfg.Reconnect.Growth,
		Jitter:      cfg.Reconnect.Jitter,
		Settle:      cfg.Reconnect.Settle,
	}
	ec.HealthyReset = cfg.Reconnect.HealthyReset
	ec.HeartbeatInterval = cfg.Heartbeat.Interval
	ec.FaultMinInterval = cfg.Faults.MinInterval
	return ec
}
