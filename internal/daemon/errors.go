// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingEngine is returned when an app is created without a playback engine.
	ErrMissingEngine = errors.New("engine is required")

	// ErrMissingAPI is returned when an app is created without an API server.
	ErrMissingAPI = errors.New("API server is required")

	// ErrAlreadyStarted is returned by a second Run.
	ErrAlreadyStarted = errors.New("app already started")
)
