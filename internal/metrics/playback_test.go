// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/radiosync/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func TestSetConnectionState_OneHot(t *testing.T) {
	metrics.RecordTransition("connecting", "connected", "media_playing")
	require.Equal(t, 1.0, gaugeValue(t, metrics.ConnectionState.WithLabelValues("connected")))
	require.Equal(t, 0.0, gaugeValue(t, metrics.ConnectionState.WithLabelValues("reconnecting")))

	metrics.SetConnectionState("error")
	require.Equal(t, 0.0, gaugeValue(t, metrics.ConnectionState.WithLabelValues("connected")))
	require.Equal(t, 1.0, gaugeValue(t, metrics.ConnectionState.WithLabelValues("error")))
}

func TestObserveFetch_CountsByResult(t *testing.T) {
	before := counterValue(t, metrics.FetchTotal.WithLabelValues("now_playing", "failure"))
	metrics.ObserveFetch("now_playing", errors.New("boom"), 10*time.Millisecond)
	require.Equal(t, before+1, counterValue(t, metrics.FetchTotal.WithLabelValues("now_playing", "failure")))
}

func TestPromhttpExposure(t *testing.T) {
	metrics.RecordBufferIntervention("shade_rate")
	metrics.ObserveDrift(-4, "partial")

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `radiosync_buffer_interventions_total{action="shade_rate"}`))
	require.True(t, strings.Contains(string(body), "radiosync_drift_seconds_bucket"))
}

func TestFetchBreakerState(t *testing.T) {
	metrics.SetFetchBreakerState("heartbeat", "open")
	require.Equal(t, 1.0, gaugeValue(t, metrics.FetchBreakerOpen.WithLabelValues("heartbeat")))
	metrics.SetFetchBreakerState("heartbeat", "half-open")
	require.Equal(t, 1.0, gaugeValue(t, metrics.FetchBreakerOpen.WithLabelValues("heartbeat")))
	metrics.SetFetchBreakerState("heartbeat", "closed")
	require.Equal(t, 0.0, gaugeValue(t, metrics.FetchBreakerOpen.WithLabelValues("heartbeat")))

	before := counterValue(t, metrics.FetchBreakerOpened.WithLabelValues("heartbeat", "threshold_exceeded"))
	metrics.RecordFetchBreakerOpened("heartbeat", "threshold_exceeded")
	require.Equal(t, before+1, counterValue(t, metrics.FetchBreakerOpened.WithLabelValues("heartbeat", "threshold_exceeded")))
}
