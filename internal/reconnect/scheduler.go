// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package reconnect decides whether and when the next reconnection attempt runs.
package reconnect

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ManuGH/radiosync/internal/metrics"
)

var (
	// ErrInFlight is returned while a previous attempt has not settled.
	ErrInFlight = errors.New("reconnect: attempt already in flight")
	// ErrNotPlaying is returned when the user is not playing.
	ErrNotPlaying = errors.New("reconnect: playback not requested")
	// ErrExhausted is returned once the attempt budget is spent.
	ErrExhausted = errors.New("reconnect: attempts exhausted")
)

// Config is the attempt budget and backoff curve.
type Config struct {
	MaxAttempts int
	MaxDelay    time.Duration
	Growth      float64
	// Jitter is the upper bound of the random extra delay, as a fraction of the
	// deterministic delay.
	Jitter float64
	// Settle is how long an attempt stays in flight after it starts playing.
	Settle time.Duration
}

// DefaultConfig returns the production backoff curve.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		MaxDelay:    30 * time.Second,
		Growth:      1.4,
		Jitter:      0.25,
		Settle:      2 * time.Second,
	}
}

// Factors are the device and network inputs of a single scheduling decision.
type Factors struct {
	BaseDelay         time.Duration
	DeviceMultiplier  float64
	NetworkMultiplier float64
}

func (f Factors) normalized() Factors {
	if f.DeviceMultiplier <= 0 {
		f.DeviceMultiplier = 1
	}
	if f.NetworkMultiplier <= 0 {
		f.NetworkMultiplier = 1
	}
	if f.BaseDelay <= 0 {
		f.BaseDelay = time.Second
	}
	return f
}

// Attempt is a scheduled reconnection.
type Attempt struct {
	Number int
	Delay  time.Duration
}

// Scheduler serializes reconnection attempts and enforces the attempt budget.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	attempts int
	inFlight bool
	jitter   func() float64
}

// New returns a scheduler; non-positive fields fall back to DefaultConfig.
func New(cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Growth < 1 {
		cfg.Growth = def.Growth
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.Settle <= 0 {
		cfg.Settle = def.Settle
	}
	return &Scheduler{cfg: cfg, jitter: rand.Float64}
}

// SetJitterSource replaces the [0,1) random source. Tests use it to pin jitter.
func (s *Scheduler) SetJitterSource(fn func() float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jitter = fn
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Backoff is the deterministic delay of the given 1-based attempt, before jitter.
// It is non-decreasing in attempt and never exceeds Ceiling(f).
func (s *Scheduler) Backoff(attempt int, f Factors) time.Duration {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return backoff(cfg, attempt, f.normalized())
}

// Ceiling is the largest delay any attempt can be given under f.
func (s *Scheduler) Ceiling(f Factors) time.Duration {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	f = f.normalized()
	return scale(cfg.MaxDelay, f.DeviceMultiplier*f.NetworkMultiplier)
}

func backoff(cfg Config, attempt int, f Factors) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(f.BaseDelay) * math.Pow(cfg.Growth, float64(attempt-1))
	if raw > float64(cfg.MaxDelay) || math.IsInf(raw, 0) {
		raw = float64(cfg.MaxDelay)
	}
	return scale(time.Duration(raw), f.DeviceMultiplier*f.NetworkMultiplier)
}

func scale(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}

// Schedule claims the next attempt. playing is the user's intent; a refusal
// leaves the scheduler unchanged.
func (s *Scheduler) Schedule(playing bool, f Factors) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !playing:
		metrics.RecordReconnectRefused("not_playing")
		return Attempt{}, ErrNotPlaying
	case s.inFlight:
		metrics.RecordReconnectRefused("in_flight")
		return Attempt{}, ErrInFlight
	case s.attempts >= s.cfg.MaxAttempts:
		metrics.RecordReconnectRefused("exhausted")
		return Attempt{}, ErrExhausted
	}

	f = f.normalized()
	s.attempts++
	s.inFlight = true

	delay := backoff(s.cfg, s.attempts, f)
	if s.cfg.Jitter > 0 && s.jitter != nil {
		delay += time.Duration(float64(delay) * s.cfg.Jitter * s.jitter())
	}
	if ceiling := scale(s.cfg.MaxDelay, f.DeviceMultiplier*f.NetworkMultiplier); delay > ceiling {
		delay = ceiling
	}
	return Attempt{Number: s.attempts, Delay: delay}, nil
}

// Release clears the in-flight flag once an attempt has settled or failed.
func (s *Scheduler) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

// Reset restores the full budget after sustained healthy playback or a new session.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = 0
	s.inFlight = false
}

// Attempts returns the number of attempts claimed since the last Reset.
func (s *Scheduler) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// InFlight reports whether an attempt is in progress.
func (s *Scheduler) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Exhausted reports whether the budget is spent.
func (s *Scheduler) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts >= s.cfg.MaxAttempts
}
