// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

var (
	// ErrUnknownConfigField marks a YAML key that does not map to AppConfig.
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrMultipleDocuments marks a YAML file holding more than one document.
	ErrMultipleDocuments = errors.New("config file must contain a single YAML document")
	// ErrUnsupportedFormat marks a config file without a .yaml or .yml extension.
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)
