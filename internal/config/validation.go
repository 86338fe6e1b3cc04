// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"
	"time"

	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/ManuGH/radiosync/internal/validate"
	"github.com/rs/zerolog"
)

var (
	resumeBackends = []string{"memory", "file", "sqlite", "badger", "redis"}
	networkClasses = []string{
		string(profile.NetworkSlow2G),
		string(profile.Network2G),
		string(profile.Network3G),
		string(profile.Network4G),
		string(profile.NetworkUnknown),
	}
	telemetryExporters = []string{"grpc", "http"}
)

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.URL("server.baseURL", cfg.Server.BaseURL, []string{"http", "https"})
	v.URLPath("server.nowPlayingPath", cfg.Server.NowPlayingPath)
	v.URLPath("server.heartbeatPath", cfg.Server.HeartbeatPath)
	v.URLPath("server.streamPath", cfg.Server.StreamPath)
	v.DurationRange("server.timeout", cfg.Server.Timeout, 100*time.Millisecond, 2*time.Minute)
	v.Range("server.breakerThreshold", cfg.Server.BreakerThreshold, 1, 100)
	v.DurationRange("server.breakerReset", cfg.Server.BreakerReset, time.Second, 10*time.Minute)

	if _, err := profile.ParseDeviceClass(cfg.Device.Class); err != nil {
		v.AddError("device.class", err.Error(), cfg.Device.Class)
	}
	v.OneOf("network.class", strings.ToLower(strings.TrimSpace(cfg.Network.Class)), networkClasses)

	r := cfg.Reconnect
	v.Range("reconnect.maxAttempts", r.MaxAttempts, 1, 20)
	v.DurationRange("reconnect.maxDelay", r.MaxDelay, time.Second, 10*time.Minute)
	v.FloatRange("reconnect.growth", r.Growth, 1, 4)
	v.FloatRange("reconnect.jitter", r.Jitter, 0, 1)
	v.DurationRange("reconnect.settle", r.Settle, 0, time.Minute)
	v.DurationRange("reconnect.healthyReset", r.HealthyReset, time.Second, time.Hour)

	v.DurationRange("heartbeat.interval", cfg.Heartbeat.Interval, time.Second, 10*time.Minute)
	v.DurationRange("faults.minInterval", cfg.Faults.MinInterval, 0, time.Minute)

	validateResume(v, cfg.Resume)

	v.Positive("sink.byteRate", cfg.Sink.ByteRate)
	v.DurationRange("sink.startBuffer", cfg.Sink.StartBuffer, 0, time.Minute)
	v.DurationRange("sink.stallTimeout", cfg.Sink.StallTimeout, time.Second, 5*time.Minute)

	v.NotEmpty("api.listen", cfg.API.Listen)
	v.Range("api.rateLimit", cfg.API.RateLimit, 0, 100000)

	v.Custom("log.level", cfg.Log.Level, func(any) error {
		_, err := zerolog.ParseLevel(cfg.Log.Level)
		return err
	})

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, telemetryExporters)
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}

func validateResume(v *validate.Validator, r ResumeConfig) {
	backend := strings.ToLower(strings.TrimSpace(r.Backend))
	v.OneOf("resume.backend", backend, resumeBackends)
	switch backend {
	case "file", "sqlite", "badger":
		v.NotEmpty("resume.path", r.Path)
	case "redis":
		v.NotEmpty("resume.redisAddr", r.RedisAddr)
		v.Range("resume.redisDB", r.RedisDB, 0, 15)
	}
	v.DurationRange("resume.maxAge", r.MaxAge, 0, 24*time.Hour)
}
