// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package nowplaying

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/radiosync/internal/clock"
	"github.com/ManuGH/radiosync/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNowPlaying_DecodesSnapshot(t *testing.T) {
	var gotQuery url.Values
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, DefaultNowPlayingPath, r.URL.Path)
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"title":"T","artist":"A","album":"L","duration":200,"path":"/music/a.mp3",
			"playback_position":120,"playback_position_ms":120500,"active_listeners":4}`))
	}))

	snap, err := c.NowPlaying(context.Background(), map[string]string{"platform": "android"})
	require.NoError(t, err)
	assert.Equal(t, "android", gotQuery.Get("platform"))
	assert.Equal(t, "/music/a.mp3", snap.TrackID())
	assert.InDelta(t, 120.5, snap.Position(), 1e-9)
	assert.Equal(t, 200.0, snap.Duration)
	require.NotNil(t, snap.ActiveListeners)
	assert.Equal(t, 4, *snap.ActiveListeners)
}

func TestNowPlaying_ErrorField(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"no track loaded"}`))
	}))
	_, err := c.NowPlaying(context.Background(), nil)
	require.ErrorIs(t, err, ErrServerError)
	assert.Contains(t, err.Error(), "no track loaded")
}

func TestNowPlaying_MalformedJSON(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	_, err := c.NowPlaying(context.Background(), nil)
	require.ErrorIs(t, err, ErrBadResponse)
}

func TestNowPlaying_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	c, err := New(Config{BaseURL: srv.URL}, WithBreakers(
		resilience.NewCircuitBreaker("np-test", 2, time.Minute, resilience.WithClock(clk)),
		resilience.NewCircuitBreaker("hb-test", 2, time.Minute, resilience.WithClock(clk)),
	))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.NowPlaying(context.Background(), nil)
		require.ErrorIs(t, err, ErrServerError)
	}
	_, err = c.NowPlaying(context.Background(), nil)
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the server")
}

func TestHeartbeat_SendsConnectionID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, DefaultHeartbeatPath, r.URL.Path)
		require.Equal(t, "conn-1", r.URL.Query().Get("connection_id"))
		_, _ = w.Write([]byte(`{"active_listeners":2,"radio_position_ms":61250}`))
	}))

	hb, err := c.Heartbeat(context.Background(), "conn-1", nil)
	require.NoError(t, err)
	pos, ok := hb.Position()
	require.True(t, ok)
	assert.InDelta(t, 61.25, pos, 1e-9)
	assert.Equal(t, 2, *hb.ActiveListeners)
}

func TestHeartbeat_NoPosition(t *testing.T) {
	_, ok := Heartbeat{}.Position()
	assert.False(t, ok)
}

func TestStreamURL(t *testing.T) {
	c, err := New(Config{BaseURL: "http://radio.local:8000/base/", StreamPath: "/audio"})
	require.NoError(t, err)

	at := time.UnixMilli(1_700_000_000_123)
	raw := c.StreamURL(42.5, "ios", map[string]string{"chunk_size": "16384", "position": "999"}, at)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "/base/audio", u.Path)
	q := u.Query()
	assert.Equal(t, "1700000000123", q.Get("t"))
	assert.Equal(t, "42.500", q.Get("position"), "hints never override core parameters")
	assert.Equal(t, "ios", q.Get("platform"))
	assert.Equal(t, "16384", q.Get("chunk_size"))
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://x"})
	require.Error(t, err)
	_, err = New(Config{BaseURL: "://"})
	require.Error(t, err)
}

func TestNowPlaying_CanceledContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.NowPlaying(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}
