// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchBreakerOpen is 1 while fetches to the endpoint are short-circuited.
	FetchBreakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "radiosync_fetch_breaker_open",
		Help: "Whether the breaker guarding a radio server endpoint rejects fetches (half-open counts as open)",
	}, []string{"endpoint"})

	FetchBreakerOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiosync_fetch_breaker_opened_total",
		Help: "Times the breaker guarding a radio server endpoint opened",
	}, []string{"endpoint", "cause"})
)

// SetFetchBreakerState publishes the breaker state for endpoint.
func SetFetchBreakerState(endpoint, state string) {
	v := 0.0
	if state != "closed" {
		v = 1
	}
	FetchBreakerOpen.WithLabelValues(endpoint).Set(v)
}

// RecordFetchBreakerOpened counts a breaker opening with its cause.
func RecordFetchBreakerOpened(endpoint, cause string) {
	FetchBreakerOpened.WithLabelValues(endpoint, cause).Inc()
}
