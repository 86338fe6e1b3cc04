// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package nowplaying

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError_Sentinels(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		sentinel error
	}{
		{"HTTP 500", nil, http.StatusInternalServerError, ErrServerError},
		{"HTTP 404", nil, http.StatusNotFound, ErrBadResponse},
		{"Network timeout", &net.DNSError{IsTimeout: true}, 0, ErrTimeout},
		{"Context timeout", context.DeadlineExceeded, 0, ErrTimeout},
		{"Refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, 0, ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := wrapError("now_playing", tc.err, tc.status, nil)
			require.ErrorIs(t, wrapped, tc.sentinel)

			var npErr *Error
			require.ErrorAs(t, wrapped, &npErr)
			assert.Equal(t, "now_playing", npErr.Operation)
			assert.Equal(t, tc.status, npErr.Status)
		})
	}
}

func TestWrapError_SuccessIsNil(t *testing.T) {
	assert.NoError(t, wrapError("heartbeat", nil, http.StatusOK, nil))
}

func TestWrapError_TruncatesBody(t *testing.T) {
	err := wrapError("now_playing", nil, http.StatusBadGateway, []byte(strings.Repeat("x", 1000)))
	var npErr *Error
	require.ErrorAs(t, err, &npErr)
	assert.Len(t, npErr.Body, maxErrorBody)
	assert.Contains(t, err.Error(), "HTTP 502")
}
