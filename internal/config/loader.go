// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader builds an AppConfig from defaults, an optional YAML file and the environment.
type Loader struct {
	configPath string
	version    string

	// ConsumedEnvKeys records every RADIOSYNC_ key the last Load read from the environment.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty path skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path.
func (l *Loader) Path() string { return l.configPath }

// Load returns the merged and validated configuration.
func (l *Loader) Load() (AppConfig, error) {
	l.ConsumedEnvKeys = make(map[string]struct{})

	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.loadFile(&cfg); err != nil {
			return AppConfig{}, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
	}

	l.mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// ConsumedKeys returns the sorted environment keys read by the last Load.
func (l *Loader) ConsumedKeys() []string {
	keys := make([]string, 0, len(l.ConsumedEnvKeys))
	for k := range l.ConsumedEnvKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// loadFile decodes the YAML file over cfg. Keys absent from the file keep their defaults.
func (l *Loader) loadFile(cfg *AppConfig) error {
	ext := strings.ToLower(filepath.Ext(l.configPath))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (use .yaml or .yml)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- the path comes from the operator's command line
	f, err := os.Open(l.configPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	l.mergeServerEnv(cfg)
	l.mergeProfileEnv(cfg)
	l.mergeReconnectEnv(cfg)
	l.mergeResumeEnv(cfg)
	l.mergeRuntimeEnv(cfg)
}

func (l *Loader) mergeServerEnv(cfg *AppConfig) {
	s := &cfg.Server
	s.BaseURL = l.envString("SERVER_BASE_URL", s.BaseURL)
	s.NowPlayingPath = l.envString("SERVER_NOW_PLAYING_PATH", s.NowPlayingPath)
	s.HeartbeatPath = l.envString("SERVER_HEARTBEAT_PATH", s.HeartbeatPath)
	s.StreamPath = l.envString("SERVER_STREAM_PATH", s.StreamPath)
	s.Timeout = l.envDuration("SERVER_TIMEOUT", s.Timeout)
	s.BreakerThreshold = l.envInt("SERVER_BREAKER_THRESHOLD", s.BreakerThreshold)
	s.BreakerReset = l.envDuration("SERVER_BREAKER_RESET", s.BreakerReset)
}

func (l *Loader) mergeProfileEnv(cfg *AppConfig) {
	cfg.Device.Class = l.envString("DEVICE_CLASS", cfg.Device.Class)
	cfg.Device.UserAgent = l.envString("DEVICE_USER_AGENT", cfg.Device.UserAgent)
	cfg.Network.Class = l.envString("NETWORK_CLASS", cfg.Network.Class)
	cfg.Heartbeat.Interval = l.envDuration("HEARTBEAT_INTERVAL", cfg.Heartbeat.Interval)
	cfg.Faults.MinInterval = l.envDuration("FAULTS_MIN_INTERVAL", cfg.Faults.MinInterval)
}

func (l *Loader) mergeReconnectEnv(cfg *AppConfig) {
	r := &cfg.Reconnect
	r.MaxAttempts = l.envInt("RECONNECT_MAX_ATTEMPTS", r.MaxAttempts)
	r.MaxDelay = l.envDuration("RECONNECT_MAX_DELAY", r.MaxDelay)
	r.Growth = l.envFloat("RECONNECT_GROWTH", r.Growth)
	r.Jitter = l.envFloat("RECONNECT_JITTER", r.Jitter)
	r.Settle = l.envDuration("RECONNECT_SETTLE", r.Settle)
	r.HealthyReset = l.envDuration("RECONNECT_HEALTHY_RESET", r.HealthyReset)
}

func (l *Loader) mergeResumeEnv(cfg *AppConfig) {
	r := &cfg.Resume
	r.Backend = l.envString("RESUME_BACKEND", r.Backend)
	r.Path = l.envString("RESUME_PATH", r.Path)
	r.RedisAddr = l.envString("RESUME_REDIS_ADDR", r.RedisAddr)
	r.RedisDB = l.envInt("RESUME_REDIS_DB", r.RedisDB)
	r.Prefix = l.envString("RESUME_PREFIX", r.Prefix)
	r.MaxAge = l.envDuration("RESUME_MAX_AGE", r.MaxAge)
}

func (l *Loader) mergeRuntimeEnv(cfg *AppConfig) {
	cfg.Sink.ByteRate = l.envInt("SINK_BYTE_RATE", cfg.Sink.ByteRate)
	cfg.Sink.StartBuffer = l.envDuration("SINK_START_BUFFER", cfg.Sink.StartBuffer)
	cfg.Sink.StallTimeout = l.envDuration("SINK_STALL_TIMEOUT", cfg.Sink.StallTimeout)

	cfg.API.Listen = l.envString("API_LISTEN", cfg.API.Listen)
	cfg.API.RateLimit = l.envInt("API_RATE_LIMIT", cfg.API.RateLimit)

	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("TELEMETRY_ENABLED", t.Enabled)
	t.Exporter = l.envString("TELEMETRY_EXPORTER", t.Exporter)
	t.Endpoint = l.envString("TELEMETRY_ENDPOINT", t.Endpoint)
	t.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", t.SamplingRate)
	t.Environment = l.envString("TELEMETRY_ENVIRONMENT", t.Environment)
}

func (l *Loader) consume(key string) string {
	full := EnvPrefix + key
	if _, ok := os.LookupEnv(full); ok {
		l.ConsumedEnvKeys[full] = struct{}{}
	}
	return full
}

func (l *Loader) envString(key, def string) string {
	return ParseString(l.consume(key), def)
}

func (l *Loader) envInt(key string, def int) int {
	return ParseInt(l.consume(key), def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	return ParseFloat(l.consume(key), def)
}

func (l *Loader) envBool(key string, def bool) bool {
	return ParseBool(l.consume(key), def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	return ParseDuration(l.consume(key), def)
}
