// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventsDropped counts engine events (status, track, error) a UI subscriber
// never received. reason is "full" for Offer or the context outcome for Publish.
var EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "radiosync_events_dropped_total",
	Help: "Engine events dropped before reaching a subscriber",
}, []string{"topic", "reason"})

// RecordEventDropped counts one event lost to a slow subscriber.
func RecordEventDropped(topic, reason string) {
	EventsDropped.WithLabelValues(topic, reason).Inc()
}
