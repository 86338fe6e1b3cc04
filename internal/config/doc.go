// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for radiosync.
//
// Precedence is ENV > YAML file > defaults. The YAML file is parsed strictly
// (unknown keys and multiple documents are rejected) and every load ends in
// Validate. ConfigHolder owns the active snapshot and hot-reloads the file.
package config
