// SPDX-License-Identifier: MIT

package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSessionAttributes(t *testing.T) {
	tests := []struct {
		name                       string
		session, connection, track string
		wantLen                    int
	}{
		{name: "all fields", session: "s1", connection: "c1", track: "/music/a.mp3", wantLen: 3},
		{name: "no track yet", session: "s1", connection: "c1", wantLen: 2},
		{name: "empty", wantLen: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := SessionAttributes(tt.session, tt.connection, tt.track)
			require.Len(t, attrs, tt.wantLen)
			if tt.track != "" {
				assert.Equal(t, tt.track, lookup(t, attrs, TrackIDKey).AsString())
			}
		})
	}
}

func TestProfileAttributes(t *testing.T) {
	attrs := ProfileAttributes("android", "3g")
	require.Len(t, attrs, 2)
	assert.Equal(t, "android", lookup(t, attrs, DeviceClassKey).AsString())
	assert.Equal(t, "3g", lookup(t, attrs, NetworkClassKey).AsString())
}

func TestReconnectAttributes(t *testing.T) {
	attrs := ReconnectAttributes(3, "media_error", 4200)
	require.Len(t, attrs, 3)
	assert.Equal(t, int64(3), lookup(t, attrs, ReconnectAttemptKey).AsInt64())
	assert.Equal(t, "media_error", lookup(t, attrs, ReconnectReasonKey).AsString())
	assert.Equal(t, int64(4200), lookup(t, attrs, ReconnectDelayKey).AsInt64())
}

func TestFetchAttributes(t *testing.T) {
	attrs := FetchAttributes("reconnect", true)
	assert.Equal(t, "reconnect", lookup(t, attrs, FetchKindKey).AsString())
	assert.True(t, lookup(t, attrs, FetchStaleKey).AsBool())
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes(errors.New("boom"), "network_error")
	require.Len(t, attrs, 2)
	assert.True(t, lookup(t, attrs, ErrorKey).AsBool())
	assert.Equal(t, "network_error", lookup(t, attrs, ErrorTypeKey).AsString())
}

func lookup(t *testing.T, attrs []attribute.KeyValue, key string) attribute.Value {
	t.Helper()
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	t.Fatalf("attribute %s not found", key)
	return attribute.Value{}
}
