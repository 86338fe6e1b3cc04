// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuGH/radiosync/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	cb := NewCircuitBreaker("nowplaying", 3, 30*time.Second, WithClock(clk))

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Execute(fail), errBoom)
		assert.Equal(t, StateClosed, cb.State())
	}
	require.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("nowplaying", 3, 30*time.Second, WithClock(clock.NewFake(time.Unix(0, 0))))
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	require.NoError(t, cb.Execute(succeed))
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	cb := NewCircuitBreaker("heartbeat", 1, 10*time.Second, WithClock(clk))

	_ = cb.Execute(fail)
	require.Equal(t, StateOpen, cb.State())

	clk.Advance(9 * time.Second)
	require.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)

	// Failed probe re-opens and restarts the timeout.
	clk.Advance(time.Second)
	require.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	require.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)

	clk.Advance(10 * time.Second)
	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SingleProbeWhileHalfOpen(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	cb := NewCircuitBreaker("heartbeat", 1, time.Second, WithClock(clk))
	_ = cb.Execute(fail)
	clk.Advance(time.Second)

	err := cb.Execute(func() error {
		assert.Equal(t, StateHalfOpen, cb.State())
		assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen, "concurrent probe rejected")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CancellationIsNotAFailure(t *testing.T) {
	cb := NewCircuitBreaker("nowplaying", 1, time.Minute, WithClock(clock.NewFake(time.Unix(0, 0))))
	err := cb.Execute(func() error { return context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CustomClassifier(t *testing.T) {
	cb := NewCircuitBreaker("nowplaying", 1, time.Minute,
		WithClock(clock.NewFake(time.Unix(0, 0))),
		WithFailureClassifier(func(err error) bool { return !errors.Is(err, errBoom) }),
	)
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.State())
}
