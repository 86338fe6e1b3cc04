// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/radiosync/internal/config"
	"github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/nowplaying"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before the components start.
// An unwritable resume directory is fatal; an unreachable radio server is only
// logged because the engine reconnects on its own.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Str("event", "startup.checks_begin").Msg("running pre-flight startup checks")

	switch strings.ToLower(cfg.Resume.Backend) {
	case "file", "sqlite", "badger":
		if err := checkDataDir(logger, cfg.Resume.Path); err != nil {
			return fmt.Errorf("resume directory check failed: %w", err)
		}
	}

	checkServer(ctx, logger, cfg)

	logger.Info().Str("event", "startup.checks_passed").Msg("startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	probe := filepath.Join(path, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(probe)

	logger.Info().Str("path", path).Msg("resume directory is writable")
	return nil
}

func checkServer(ctx context.Context, logger zerolog.Logger, cfg config.AppConfig) {
	client, err := nowplaying.New(nowplaying.Config{
		BaseURL:          cfg.Server.BaseURL,
		NowPlayingPath:   cfg.Server.NowPlayingPath,
		HeartbeatPath:    cfg.Server.HeartbeatPath,
		StreamPath:       cfg.Server.StreamPath,
		Timeout:          cfg.Server.Timeout,
		BreakerThreshold: cfg.Server.BreakerThreshold,
		BreakerReset:     cfg.Server.BreakerReset,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("radio server check skipped")
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	snap, err := client.NowPlaying(probeCtx, nil)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("event", "startup.server_unreachable").
			Str("server", cfg.Server.BaseURL).
			Msg("radio server not reachable yet; playback will retry")
		return
	}
	logger.Info().
		Str("server", cfg.Server.BaseURL).
		Str(log.FieldTrackID, snap.TrackID()).
		Msg("radio server is reachable")
}
