// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package profile holds the closed set of device and network timing records the
// playback engine is parameterised by.
package profile

import (
	"fmt"
	"strings"
	"time"
)

// DeviceClass is fixed for the lifetime of the process.
type DeviceClass string

const (
	DeviceIOS     DeviceClass = "ios"
	DeviceAndroid DeviceClass = "android"
	DeviceDesktop DeviceClass = "desktop"
)

// Device carries the tolerance and cadence values selected by device class.
type Device struct {
	Class DeviceClass
	// Constrained platforms have coarse timers and aggressive power policies.
	Constrained bool

	// Drift handling (seconds).
	DriftTolerance   float64
	HardDriftFactor  float64
	CorrectionFactor float64
	MaxReconnectGap  time.Duration

	// Cadence.
	BufferCheckInterval time.Duration
	TrackChangeGrace    time.Duration

	// Backoff.
	BackoffMultiplier float64

	// Buffer ladder thresholds (seconds ahead of the playhead).
	HealthyAhead       float64
	LowAhead           float64
	CriticalAhead      float64
	ShadeRate          float64
	CriticalPause      time.Duration
	StallWindow        time.Duration
	StallsBeforeReload int
	MaxReloads         int

	// Resume blobs older than this are ignored.
	ResumeMaxAge time.Duration

	// Opaque query hints forwarded to the audio transport and now-playing endpoints.
	StreamHints     map[string]string
	NowPlayingHints map[string]string
}

// HardDriftThreshold is the drift magnitude that forces an anchor reset.
func (d Device) HardDriftThreshold() float64 {
	return d.DriftTolerance * d.HardDriftFactor
}

var devices = map[DeviceClass]Device{
	DeviceDesktop: {
		Class:               DeviceDesktop,
		DriftTolerance:      3,
		HardDriftFactor:     2,
		CorrectionFactor:    0.10,
		MaxReconnectGap:     10 * time.Second,
		BufferCheckInterval: 2 * time.Second,
		TrackChangeGrace:    2 * time.Second,
		BackoffMultiplier:   1.0,
		HealthyAhead:        10,
		LowAhead:            5,
		CriticalAhead:       2,
		ShadeRate:           0.97,
		CriticalPause:       time.Second,
		StallWindow:         10 * time.Second,
		StallsBeforeReload:  3,
		MaxReloads:          3,
		ResumeMaxAge:        30 * time.Second,
	},
	DeviceAndroid: {
		Class:               DeviceAndroid,
		Constrained:         true,
		DriftTolerance:      6,
		HardDriftFactor:     2,
		CorrectionFactor:    0.06,
		MaxReconnectGap:     15 * time.Second,
		BufferCheckInterval: time.Second,
		TrackChangeGrace:    3 * time.Second,
		BackoffMultiplier:   1.5,
		HealthyAhead:        12,
		LowAhead:            8,
		CriticalAhead:       3,
		ShadeRate:           0.98,
		CriticalPause:       2 * time.Second,
		StallWindow:         10 * time.Second,
		StallsBeforeReload:  2,
		MaxReloads:          2,
		ResumeMaxAge:        20 * time.Second,
		StreamHints: map[string]string{
			"buffer":          "6",
			"min_buffer_time": "2",
		},
		NowPlayingHints: map[string]string{"platform": "android"},
	},
	DeviceIOS: {
		Class:               DeviceIOS,
		Constrained:         true,
		DriftTolerance:      6,
		HardDriftFactor:     2,
		CorrectionFactor:    0.08,
		MaxReconnectGap:     15 * time.Second,
		BufferCheckInterval: time.Second,
		TrackChangeGrace:    3 * time.Second,
		BackoffMultiplier:   1.5,
		HealthyAhead:        12,
		LowAhead:            8,
		CriticalAhead:       3,
		ShadeRate:           0.98,
		CriticalPause:       2 * time.Second,
		StallWindow:         10 * time.Second,
		StallsBeforeReload:  2,
		MaxReloads:          2,
		ResumeMaxAge:        45 * time.Second,
		StreamHints: map[string]string{
			"chunk_size":     "16384",
			"initial_buffer": "3",
		},
	},
}

// DeviceFor returns the record for class, falling back to desktop.
func DeviceFor(class DeviceClass) Device {
	if d, ok := devices[class]; ok {
		return d
	}
	return devices[DeviceDesktop]
}

// ParseDeviceClass accepts the canonical names plus "other" for desktop.
func ParseDeviceClass(s string) (DeviceClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ios", "ipados":
		return DeviceIOS, nil
	case "android":
		return DeviceAndroid, nil
	case "", "desktop", "other", "desktop-or-other":
		return DeviceDesktop, nil
	default:
		return "", fmt.Errorf("unknown device class %q", s)
	}
}
