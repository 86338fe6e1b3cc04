// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/radiosync/internal/config"
	"github.com/ManuGH/radiosync/internal/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func radioServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/now-playing":
			_, _ = w.Write([]byte(`{"title":"Song","artist":"Band","path":"/a.mp3","duration":200,"playback_position":12}`))
		case "/api/heartbeat":
			_, _ = w.Write([]byte(`{"active_listeners":3}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Server.BaseURL = baseURL
	cfg.API.Listen = "127.0.0.1:0"
	cfg.Resume.Backend = "file"
	cfg.Resume.Path = t.TempDir()
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func TestBootstrap_BuildsAndStops(t *testing.T) {
	srv := radioServer(t)
	cfg := testConfig(t, srv.URL)
	holder := config.NewConfigHolder(cfg, config.NewLoader("", "v"), "")

	app, comps, err := Bootstrap(context.Background(), holder)
	require.NoError(t, err)
	require.NotNil(t, comps.Engine)
	assert.Equal(t, connection.Disconnected, comps.Engine.Status().State)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestBootstrap_UnknownBackendFails(t *testing.T) {
	cfg := config.Defaults()
	cfg.Resume.Backend = "etcd"
	holder := config.NewConfigHolder(cfg, config.NewLoader("", "v"), "")

	_, _, err := Bootstrap(context.Background(), holder)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resume store")
}

func TestPerformStartupChecks(t *testing.T) {
	srv := radioServer(t)
	cfg := testConfig(t, srv.URL)
	require.NoError(t, PerformStartupChecks(context.Background(), cfg))

	// An unreachable server is not fatal.
	cfg.Server.BaseURL = "http://127.0.0.1:1"
	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
}
