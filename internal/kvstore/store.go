// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package kvstore is the local persistent key-value store used to carry small
// playback preferences across restarts.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a byte-valued key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and locates a backend.
type Config struct {
	// Backend is one of memory, file, sqlite, badger, redis.
	Backend string
	// Path is the data directory for file, sqlite and badger.
	Path      string
	RedisAddr string
	RedisDB   int
	// Prefix namespaces redis keys.
	Prefix string
}

// Open creates the configured backend. An empty backend is memory.
func Open(cfg Config, logger zerolog.Logger) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	needsPath := backend == "file" || backend == "sqlite" || backend == "badger"
	if needsPath && cfg.Path == "" {
		return nil, fmt.Errorf("kvstore: backend %q requires a path", backend)
	}

	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return OpenFileStore(filepath.Join(cfg.Path, "radiosync-kv.json"))
	case "sqlite":
		return OpenSqliteStore(filepath.Join(cfg.Path, "radiosync-kv.sqlite"))
	case "badger":
		return OpenBadgerStore(filepath.Join(cfg.Path, "badger"))
	case "redis":
		return OpenRedisStore(RedisConfig{Addr: cfg.RedisAddr, DB: cfg.RedisDB, Prefix: cfg.Prefix}, logger)
	default:
		return nil, fmt.Errorf("unknown kvstore backend: %s (supported: memory, file, sqlite, badger, redis)", cfg.Backend)
	}
}
