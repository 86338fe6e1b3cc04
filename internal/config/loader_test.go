// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/ManuGH/radiosync/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAreValid(t *testing.T) {
	cfg, err := NewLoader("", "v-test").Load()
	require.NoError(t, err)

	assert.Equal(t, "v-test", cfg.Version)
	assert.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Reconnect.MaxDelay)
	assert.InDelta(t, 1.4, cfg.Reconnect.Growth, 1e-9)
	assert.Equal(t, 15*time.Second, cfg.Heartbeat.Interval)
	assert.Equal(t, 2*time.Second, cfg.Faults.MinInterval)
	assert.Equal(t, 16000, cfg.Sink.ByteRate)
	assert.Equal(t, ":8090", cfg.API.Listen)
	assert.Equal(t, "memory", cfg.Resume.Backend)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, "radiosync.yaml", `
server:
  baseURL: https://radio.example
  timeout: 3s
device:
  class: android
network:
  class: 3g
reconnect:
  maxAttempts: 7
  growth: 2
resume:
  backend: sqlite
  path: /var/lib/radiosync
`)
	cfg, err := NewLoader(path, "v").Load()
	require.NoError(t, err)

	assert.Equal(t, "https://radio.example", cfg.Server.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "/api/now-playing", cfg.Server.NowPlayingPath, "absent keys keep defaults")
	assert.Equal(t, profile.DeviceAndroid, cfg.Device.ResolvedClass())
	assert.Equal(t, "3g", cfg.Network.Class)
	assert.Equal(t, 7, cfg.Reconnect.MaxAttempts)
	assert.InDelta(t, 2.0, cfg.Reconnect.Growth, 1e-9)
	assert.InDelta(t, 0.25, cfg.Reconnect.Jitter, 1e-9)
	assert.Equal(t, "sqlite", cfg.Resume.Backend)
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "empty.yml", "")
	cfg, err := NewLoader(path, "v").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Server, cfg.Server)
}

func TestLoad_StrictParsing(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr error
	}{
		{"unknown top-level key", "c.yaml", "servr:\n  baseURL: http://x\n", ErrUnknownConfigField},
		{"unknown nested key", "c.yaml", "reconnect:\n  maxAttempt: 3\n", ErrUnknownConfigField},
		{"multiple documents", "c.yaml", "log:\n  level: info\n---\nlog:\n  level: debug\n", ErrMultipleDocuments},
		{"unsupported extension", "c.json", "{}", ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := NewLoader(path, "v").Load()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_BadDurationIsParseError(t *testing.T) {
	path := writeConfig(t, "c.yaml", "heartbeat:\n  interval: soon\n")
	_, err := NewLoader(path, "v").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "c.yaml", "network:\n  class: 4g\nlog:\n  level: warn\n")
	t.Setenv("RADIOSYNC_NETWORK_CLASS", "2g")
	t.Setenv("RADIOSYNC_RECONNECT_MAX_DELAY", "45s")
	t.Setenv("RADIOSYNC_TELEMETRY_ENABLED", "true")
	t.Setenv("RADIOSYNC_TELEMETRY_SAMPLING_RATE", "0.5")

	l := NewLoader(path, "v")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "2g", cfg.Network.Class)
	assert.Equal(t, "warn", cfg.Log.Level, "file value survives without env")
	assert.Equal(t, 45*time.Second, cfg.Reconnect.MaxDelay)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.InDelta(t, 0.5, cfg.Telemetry.SamplingRate, 1e-9)
	assert.Equal(t, []string{
		"RADIOSYNC_NETWORK_CLASS",
		"RADIOSYNC_RECONNECT_MAX_DELAY",
		"RADIOSYNC_TELEMETRY_ENABLED",
		"RADIOSYNC_TELEMETRY_SAMPLING_RATE",
	}, l.ConsumedKeys())
}

func TestLoad_InvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("RADIOSYNC_RECONNECT_MAX_ATTEMPTS", "many")
	t.Setenv("RADIOSYNC_HEARTBEAT_INTERVAL", "")

	cfg, err := NewLoader("", "v").Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Heartbeat.Interval)
}

func TestLoad_ValidationFailureNamesFields(t *testing.T) {
	path := writeConfig(t, "c.yaml", `
server:
  baseURL: ftp://radio.example
reconnect:
  maxAttempts: 0
resume:
  backend: redis
`)
	_, err := NewLoader(path, "v").Load()
	require.Error(t, err)

	var verr validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"server.baseURL", "reconnect.maxAttempts", "resume.redisAddr"}, verr.Fields())
}

func TestDeviceConfig_ResolvedClass(t *testing.T) {
	assert.Equal(t, profile.DeviceIOS, DeviceConfig{Class: "ipados"}.ResolvedClass())
	assert.Equal(t, profile.DeviceDesktop, DeviceConfig{}.ResolvedClass())

	ua := "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36"
	assert.Equal(t, profile.DeviceAndroid, DeviceConfig{UserAgent: ua}.ResolvedClass())
}

func TestLoad_ExampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join("..", "..", "config.example.yaml"), "v-test").Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "v-test"
	assert.Equal(t, want, cfg)
}
