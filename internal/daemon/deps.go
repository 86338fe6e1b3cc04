// SPDX-License-Identifier: MIT

package daemon

import (
	"context"

	"github.com/ManuGH/radiosync/internal/config"
	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/rs/zerolog"
)

// Runner is a long-lived component that runs until ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// Deps contains the components the App runs and wires together.
type Deps struct {
	Logger zerolog.Logger

	// Engine is the playback engine event loop.
	Engine Runner
	// API serves the status surface.
	API Runner

	// Config is hot-reloaded when non-nil.
	Config *config.ConfigHolder
	// Network receives network.class changes from reloads.
	Network *profile.Monitor
}

// Validate checks that the required components are present.
func (d *Deps) Validate() error {
	if d.Engine == nil {
		return ErrMissingEngine
	}
	if d.API == nil {
		return ErrMissingAPI
	}
	return nil
}
