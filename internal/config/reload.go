// SPDX-License-Identifier: MIT
package config

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

// ConfigHolder holds configuration with atomic reloading capability.
// Readers always see a complete validated snapshot; a failed reload keeps the
// previous one.
type ConfigHolder struct {
	mu      sync.RWMutex
	current AppConfig
	epoch   uint64

	loader     *Loader
	configPath string
	debounce   time.Duration
	logger     zerolog.Logger

	watcher *fsnotify.Watcher
	stopped chan struct{}

	reloadMu        sync.Mutex
	reloadListeners []chan<- AppConfig
}

// NewConfigHolder creates a new configuration holder with initial config.
func NewConfigHolder(initial AppConfig, loader *Loader, configPath string) *ConfigHolder {
	return &ConfigHolder{
		current:    initial,
		epoch:      1,
		loader:     loader,
		configPath: configPath,
		debounce:   defaultDebounce,
		logger:     xglog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Epoch increases by one on every successful reload.
func (h *ConfigHolder) Epoch() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.epoch
}

// Reload loads and validates the configuration again and swaps it in.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("event", "config.reload_failed").
			Msg("new configuration rejected, keeping current")
		return fmt.Errorf("reload config: %w", err)
	}

	// Swap and delivery happen under reloadMu so Subscribe sees either the old
	// config plus this delivery or the new config and no delivery.
	h.reloadMu.Lock()
	h.mu.Lock()
	old := h.current
	h.current = next
	h.epoch++
	epoch := h.epoch
	h.mu.Unlock()
	h.notifyListeners(next)
	h.reloadMu.Unlock()
	h.logChanges(old, next)

	h.logger.Info().
		Str("event", "config.reload_success").
		Uint64("epoch", epoch).
		Msg("configuration reloaded")
	return nil
}

// StartWatcher watches the config file and reloads after writes settle.
// Without a config file it is a no-op.
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str("event", "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors replace files by rename, so the directory is watched.
	if err := watcher.Add(filepath.Dir(h.configPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.watcher = watcher
	h.stopped = make(chan struct{})

	h.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", h.configPath).
		Msg("watching config file for changes")

	go h.watchLoop(ctx)
	return nil
}

func (h *ConfigHolder) watchLoop(ctx context.Context) {
	defer close(h.stopped)

	target := filepath.Clean(h.configPath)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			_ = h.watcher.Close()
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().
				Str("event", "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(h.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().
						Err(err).
						Str("event", "config.auto_reload_failed").
						Msg("automatic config reload failed")
				}
			})
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str("event", "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop closes the watcher and waits for the watch loop to exit.
func (h *ConfigHolder) Stop() {
	if h.watcher == nil {
		return
	}
	_ = h.watcher.Close()
	<-h.stopped
}

// RegisterListener registers a channel that receives every successfully reloaded config.
// Sends never block; a full channel misses the update.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// Subscribe registers ch like RegisterListener and returns the config that
// the first delivery on ch supersedes.
func (h *ConfigHolder) Subscribe(ch chan<- AppConfig) AppConfig {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
	return h.Get()
}

// notifyListeners requires reloadMu.
func (h *ConfigHolder) notifyListeners(next AppConfig) {
	for _, ch := range h.reloadListeners {
		select {
		case ch <- next:
		default:
			h.logger.Warn().
				Str("event", "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

func (h *ConfigHolder) logChanges(old, next AppConfig) {
	for _, c := range Diff(old, next) {
		ev := h.logger.Info()
		if !c.Live {
			ev = h.logger.Warn().Bool("restart_required", true)
		}
		ev.Str("event", "config.changed").
			Str("field", c.Field).
			Str("old", c.Old).
			Str("new", c.New).
			Msg("config changed")
	}
}

// maskURL keeps scheme and host and drops credentials, path and query.
func maskURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "***redacted***"
	}
	return u.Scheme + "://" + u.Host
}
