// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/radiosync/internal/profile"
)

// AppConfig is the complete runtime configuration of the daemon.
type AppConfig struct {
	// Version is the build version, set by the loader.
	Version string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Device    DeviceConfig    `yaml:"device"`
	Network   NetworkConfig   `yaml:"network"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Faults    FaultsConfig    `yaml:"faults"`
	Resume    ResumeConfig    `yaml:"resume"`
	Sink      SinkConfig      `yaml:"sink"`
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig locates the radio backend.
type ServerConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	NowPlayingPath string        `yaml:"nowPlayingPath"`
	HeartbeatPath  string        `yaml:"heartbeatPath"`
	StreamPath     string        `yaml:"streamPath"`
	Timeout        time.Duration `yaml:"timeout"`
	// BreakerThreshold consecutive failures open the per-endpoint breaker for BreakerReset.
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// DeviceConfig selects the device profile. An empty class is detected from UserAgent.
type DeviceConfig struct {
	Class     string `yaml:"class"`
	UserAgent string `yaml:"userAgent"`
}

// ResolvedClass returns the configured device class, falling back to
// user-agent detection and finally desktop.
func (d DeviceConfig) ResolvedClass() profile.DeviceClass {
	if d.Class != "" {
		if class, err := profile.ParseDeviceClass(d.Class); err == nil {
			return class
		}
	}
	if d.UserAgent != "" {
		return profile.DetectDeviceClass(d.UserAgent)
	}
	return profile.DeviceDesktop
}

// NetworkConfig is the initial network class. It may change at runtime.
type NetworkConfig struct {
	Class string `yaml:"class"`
}

// ReconnectConfig is the reconnect budget and backoff curve.
type ReconnectConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
	Growth       float64       `yaml:"growth"`
	Jitter       float64       `yaml:"jitter"`
	Settle       time.Duration `yaml:"settle"`
	HealthyReset time.Duration `yaml:"healthyReset"`
}

type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type FaultsConfig struct {
	MinInterval time.Duration `yaml:"minInterval"`
}

// ResumeConfig selects the KV backend for resume state.
type ResumeConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redisAddr"`
	RedisDB   int    `yaml:"redisDB"`
	Prefix    string `yaml:"prefix"`
	// MaxAge overrides the device profile's staleness bound when non-zero.
	MaxAge time.Duration `yaml:"maxAge"`
}

// SinkConfig tunes the headless HTTP audio sink.
type SinkConfig struct {
	ByteRate     int           `yaml:"byteRate"`
	StartBuffer  time.Duration `yaml:"startBuffer"`
	StallTimeout time.Duration `yaml:"stallTimeout"`
}

// APIConfig configures the status HTTP surface.
type APIConfig struct {
	Listen string `yaml:"listen"`
	// RateLimit is control requests per minute per client. Zero disables limiting.
	RateLimit int `yaml:"rateLimit"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			BaseURL:          "http://localhost:8000",
			NowPlayingPath:   "/api/now-playing",
			HeartbeatPath:    "/api/heartbeat",
			StreamPath:       "/stream",
			Timeout:          5 * time.Second,
			BreakerThreshold: 3,
			BreakerReset:     30 * time.Second,
		},
		Device:  DeviceConfig{},
		Network: NetworkConfig{Class: string(profile.NetworkUnknown)},
		Reconnect: ReconnectConfig{
			MaxAttempts:  5,
			MaxDelay:     30 * time.Second,
			Growth:       1.4,
			Jitter:       0.25,
			Settle:       2 * time.Second,
			HealthyReset: 30 * time.Second,
		},
		Heartbeat: HeartbeatConfig{Interval: 15 * time.Second},
		Faults:    FaultsConfig{MinInterval: 2 * time.Second},
		Resume:    ResumeConfig{Backend: "memory", Prefix: "radiosync:"},
		Sink: SinkConfig{
			ByteRate:     16000,
			StartBuffer:  2 * time.Second,
			StallTimeout: 5 * time.Second,
		},
		API: APIConfig{Listen: ":8090", RateLimit: 60},
		Log: LogConfig{Level: "info", Service: "radiosync"},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}
