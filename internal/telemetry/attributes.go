// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by engine and client spans.
const (
	SessionIDKey    = "playback.session_id"
	ConnectionIDKey = "playback.connection_id"
	TrackIDKey      = "playback.track_id"
	DeviceClassKey  = "playback.device_class"
	NetworkClassKey = "playback.network_class"

	ReconnectAttemptKey = "reconnect.attempt"
	ReconnectReasonKey  = "reconnect.reason"
	ReconnectDelayKey   = "reconnect.delay_ms"

	FetchKindKey  = "fetch.kind"
	FetchStaleKey = "fetch.stale"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes describes the session a span belongs to. Empty values are omitted.
func SessionAttributes(sessionID, connectionID, trackID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if connectionID != "" {
		attrs = append(attrs, attribute.String(ConnectionIDKey, connectionID))
	}
	if trackID != "" {
		attrs = append(attrs, attribute.String(TrackIDKey, trackID))
	}
	return attrs
}

// ProfileAttributes records the active device and network classes.
func ProfileAttributes(device, network string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(DeviceClassKey, device),
		attribute.String(NetworkClassKey, network),
	}
}

// ReconnectAttributes describes one scheduled reconnection.
func ReconnectAttributes(attempt int, reason string, delayMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ReconnectAttemptKey, attempt),
		attribute.String(ReconnectReasonKey, reason),
		attribute.Int64(ReconnectDelayKey, delayMS),
	}
}

// FetchAttributes describes a now-playing fetch and whether its result was discarded.
func FetchAttributes(kind string, stale bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(FetchKindKey, kind),
		attribute.Bool(FetchStaleKey, stale),
	}
}

// ErrorAttributes marks a span as failed with a coarse error class.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
